package authclient

import (
	"fmt"

	signin "github.com/goliatone/go-signin"
)

// GraphQLError is returned when the auth server answers with an errors array
// or can not be reached.
type GraphQLError struct {
	Operation  string
	StatusCode int
	Payload    signin.GraphQLErrorPayload
}

func (e *GraphQLError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Payload.GraphQLErrors) > 0 {
		return fmt.Sprintf("authclient: %s: %s", e.Operation, e.Payload.GraphQLErrors[0].Message)
	}
	if e.Payload.NetworkError != "" {
		return fmt.Sprintf("authclient: %s: network error: %s", e.Operation, e.Payload.NetworkError)
	}
	return fmt.Sprintf("authclient: %s: status %d", e.Operation, e.StatusCode)
}

// GraphQLPayload implements signin.GraphQLPayloadCarrier.
func (e *GraphQLError) GraphQLPayload() *signin.GraphQLErrorPayload {
	if e == nil {
		return nil
	}
	payload := e.Payload
	return &payload
}

func networkError(operation string, statusCode int, err error) *GraphQLError {
	return &GraphQLError{
		Operation:  operation,
		StatusCode: statusCode,
		Payload:    signin.GraphQLErrorPayload{NetworkError: err.Error()},
	}
}

var _ signin.GraphQLPayloadCarrier = (*GraphQLError)(nil)
