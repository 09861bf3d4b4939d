package signin

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeOAuthData         = "OAUTH_DATA_ERROR"
	textCodeInvalidRequest    = "INVALID_SIGNIN_REQUEST"
	textCodeAccountNotFound   = "STORED_ACCOUNT_NOT_FOUND"
	textCodeStateSealInvalid  = "SIGNIN_STATE_INVALID"
	textCodeMissingDependency = "SIGNIN_MISSING_DEPENDENCY"
)

// ErrOAuthData is returned when the OAuth completion step fails. It is kept
// apart from the errno table so callers can render a dedicated screen.
var ErrOAuthData = goerrors.New("unable to complete oauth flow", goerrors.CategoryExternal).
	WithTextCode(textCodeOAuthData).
	WithCode(goerrors.CodeInternal)

// ErrInvalidSigninRequest is returned when a sign in payload fails validation.
var ErrInvalidSigninRequest = goerrors.New("invalid sign in request", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidRequest).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound is returned by AccountStorage when no account is stored.
var ErrAccountNotFound = goerrors.New("stored account not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrStateSealInvalid is returned when a sealed location state can not be opened.
var ErrStateSealInvalid = goerrors.New("sealed sign in state is invalid", goerrors.CategoryAuth).
	WithTextCode(textCodeStateSealInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingDependency is returned when a component is used without a
// required collaborator.
var ErrMissingDependency = goerrors.New("missing sign in dependency", goerrors.CategoryInternal).
	WithTextCode(textCodeMissingDependency).
	WithCode(goerrors.CodeInternal)

// IsOAuthDataError reports whether err came from the OAuth completion step.
func IsOAuthDataError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeOAuthData
	}
	return false
}

// IsAccountNotFound reports whether err means no stored account matched.
func IsAccountNotFound(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeAccountNotFound
	}
	return false
}
