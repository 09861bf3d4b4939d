package signin

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// GraphQLError is a single entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLErrorPayload is the error value produced by a GraphQL call.
type GraphQLErrorPayload struct {
	GraphQLErrors []GraphQLError `json:"graphQLErrors,omitempty"`
	NetworkError  string         `json:"networkError,omitempty"`
}

// GraphQLPayloadCarrier is implemented by collaborator errors that carry the
// raw GraphQL error payload.
type GraphQLPayloadCarrier interface {
	GraphQLPayload() *GraphQLErrorPayload
}

// MapGraphQLError maps the first GraphQL error to a UI error. Anything without
// a known errno yields the unexpected error entry. It never returns nil.
func MapGraphQLError(payload *GraphQLErrorPayload) *AuthUIError {
	if payload == nil || len(payload.GraphQLErrors) == 0 {
		return UnexpectedError()
	}

	extensions := payload.GraphQLErrors[0].Extensions
	errno, ok := intFromAny(extensions["errno"])
	if !ok || errno == 0 {
		return UnexpectedError()
	}

	uiErr, ok := LookupAuthUIError(errno)
	if !ok {
		return UnexpectedError()
	}

	uiErr.VerificationMethod = VerificationMethod(stringFromAny(extensions["verificationMethod"]))
	uiErr.VerificationReason = VerificationReason(stringFromAny(extensions["verificationReason"]))
	if retryAfter, ok := intFromAny(extensions["retryAfter"]); ok && retryAfter > 0 {
		uiErr.RetryAfter = retryAfter
	}
	uiErr.RetryAfterLocalized = stringFromAny(extensions["retryAfterLocalized"])

	return uiErr
}

// ErrorFromCollaborator lifts an error returned by a collaborator into a UI
// error. A nil error maps to nil.
func ErrorFromCollaborator(err error) *AuthUIError {
	if err == nil {
		return nil
	}

	var uiErr *AuthUIError
	if errors.As(err, &uiErr) && uiErr != nil {
		clone := *uiErr
		return &clone
	}

	if IsOAuthDataError(err) {
		return OAuthDataError()
	}

	var carrier GraphQLPayloadCarrier
	if errors.As(err, &carrier) {
		return MapGraphQLError(carrier.GraphQLPayload())
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Metadata != nil {
		if errno, ok := intFromAny(richErr.Metadata["errno"]); ok {
			if entry, found := LookupAuthUIError(errno); found {
				return entry
			}
		}
	}

	return UnexpectedError()
}

func intFromAny(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return intFromFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return intFromFloat(f)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func intFromFloat(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func stringFromAny(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
