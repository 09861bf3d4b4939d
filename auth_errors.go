package signin

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Errno values reported by the auth server.
const (
	ErrnoAccountAlreadyExists    = 101
	ErrnoUnknownAccount          = 102
	ErrnoIncorrectPassword       = 103
	ErrnoUnverifiedAccount       = 104
	ErrnoInvalidVerificationCode = 105
	ErrnoInvalidToken            = 110
	ErrnoThrottled               = 114
	ErrnoRequestBlocked          = 125
	ErrnoInvalidUnblockCode      = 127
	ErrnoEmailHardBounce         = 134
	ErrnoUnverifiedSession       = 138
	ErrnoTOTPRequired            = 149
	ErrnoInvalidExpiredOTPCode   = 183
	ErrnoServerBusy              = 201
	ErrnoFeatureNotEnabled       = 202
	ErrnoBackendServiceFailure   = 203
	ErrnoInsufficientACRValues   = 211
	ErrnoUnexpectedError         = 999
	ErrnoOAuthDataError          = 1001
	ErrnoSessionExpired          = 1002
)

// AuthUIError is the error shape handed to the presentation layer.
type AuthUIError struct {
	Message             string             `json:"message"`
	Errno               int                `json:"errno"`
	VerificationMethod  VerificationMethod `json:"verificationMethod,omitempty"`
	VerificationReason  VerificationReason `json:"verificationReason,omitempty"`
	RetryAfter          int                `json:"retryAfter,omitempty"`
	RetryAfterLocalized string             `json:"retryAfterLocalized,omitempty"`
}

func (e *AuthUIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("errno %d: %s", e.Errno, e.Message)
}

// Is matches another AuthUIError by errno.
func (e *AuthUIError) Is(target error) bool {
	other, ok := target.(*AuthUIError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Errno == other.Errno
}

// Rich converts the UI error into a go-errors value with an HTTP code.
func (e *AuthUIError) Rich() *goerrors.Error {
	if e == nil {
		return nil
	}
	category, code := errnoCategory(e.Errno)
	rich := goerrors.New(e.Message, category).
		WithCode(code).
		WithTextCode(fmt.Sprintf("AUTH_ERRNO_%d", e.Errno))

	metadata := map[string]any{"errno": e.Errno}
	if e.RetryAfter > 0 {
		metadata["retryAfter"] = e.RetryAfter
	}
	if e.VerificationReason != "" {
		metadata["verificationReason"] = e.VerificationReason
	}
	return rich.WithMetadata(metadata)
}

func errnoCategory(errno int) (goerrors.Category, int) {
	switch errno {
	case ErrnoThrottled, ErrnoRequestBlocked:
		return goerrors.CategoryRateLimit, http.StatusTooManyRequests
	case ErrnoIncorrectPassword, ErrnoInvalidToken, ErrnoUnverifiedSession, ErrnoSessionExpired,
		ErrnoTOTPRequired, ErrnoInsufficientACRValues:
		return goerrors.CategoryAuth, http.StatusUnauthorized
	case ErrnoUnknownAccount:
		return goerrors.CategoryNotFound, http.StatusNotFound
	case ErrnoServerBusy, ErrnoBackendServiceFailure:
		return goerrors.CategoryExternal, http.StatusServiceUnavailable
	case ErrnoOAuthDataError, ErrnoUnexpectedError:
		return goerrors.CategoryInternal, http.StatusInternalServerError
	default:
		return goerrors.CategoryBadInput, http.StatusBadRequest
	}
}

// AuthUIErrors lists the errno values we have a message for.
var AuthUIErrors = map[int]AuthUIError{
	ErrnoAccountAlreadyExists:    {Errno: ErrnoAccountAlreadyExists, Message: "Account already exists"},
	ErrnoUnknownAccount:          {Errno: ErrnoUnknownAccount, Message: "Unknown account"},
	ErrnoIncorrectPassword:       {Errno: ErrnoIncorrectPassword, Message: "Incorrect password"},
	ErrnoUnverifiedAccount:       {Errno: ErrnoUnverifiedAccount, Message: "Unconfirmed account"},
	ErrnoInvalidVerificationCode: {Errno: ErrnoInvalidVerificationCode, Message: "Invalid confirmation code"},
	ErrnoInvalidToken:            {Errno: ErrnoInvalidToken, Message: "Invalid token"},
	ErrnoThrottled:               {Errno: ErrnoThrottled, Message: "You’ve tried too many times. Please try again later."},
	ErrnoRequestBlocked:          {Errno: ErrnoRequestBlocked, Message: "The request was blocked for security reasons"},
	ErrnoInvalidUnblockCode:      {Errno: ErrnoInvalidUnblockCode, Message: "Invalid authorization code"},
	ErrnoEmailHardBounce:         {Errno: ErrnoEmailHardBounce, Message: "Sorry, there was a problem with your email address"},
	ErrnoUnverifiedSession:       {Errno: ErrnoUnverifiedSession, Message: "Unconfirmed session"},
	ErrnoTOTPRequired:            {Errno: ErrnoTOTPRequired, Message: "Two-step authentication is required to sign in to this service"},
	ErrnoInvalidExpiredOTPCode:   {Errno: ErrnoInvalidExpiredOTPCode, Message: "Invalid or expired confirmation code"},
	ErrnoServerBusy:              {Errno: ErrnoServerBusy, Message: "Server busy, try again soon"},
	ErrnoFeatureNotEnabled:       {Errno: ErrnoFeatureNotEnabled, Message: "Feature not enabled"},
	ErrnoBackendServiceFailure:   {Errno: ErrnoBackendServiceFailure, Message: "System unavailable, try again soon"},
	ErrnoInsufficientACRValues:   {Errno: ErrnoInsufficientACRValues, Message: "Two-step authentication is required to sign in to this service"},
	ErrnoUnexpectedError:         {Errno: ErrnoUnexpectedError, Message: "Unexpected error"},
}

// UnexpectedError is the fallback for anything not in AuthUIErrors.
func UnexpectedError() *AuthUIError {
	e := AuthUIErrors[ErrnoUnexpectedError]
	return &e
}

// OAuthDataError is shown when the OAuth completion step fails.
func OAuthDataError() *AuthUIError {
	return &AuthUIError{Errno: ErrnoOAuthDataError, Message: "Unexpected error"}
}

// SessionExpiredError is shown when cached credentials are no longer valid.
func SessionExpiredError() *AuthUIError {
	return &AuthUIError{Errno: ErrnoSessionExpired, Message: "Session expired. Sign in to continue."}
}

// LookupAuthUIError returns a copy of the table entry for errno.
func LookupAuthUIError(errno int) (*AuthUIError, bool) {
	entry, ok := AuthUIErrors[errno]
	if !ok {
		return nil, false
	}
	return &entry, true
}
