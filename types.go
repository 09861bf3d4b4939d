package signin

import (
	"context"
	"strings"
)

// VerificationMethod is the server supplied hint on how an account has to
// complete verification after the password check.
type VerificationMethod string

const (
	VerificationMethodEmail        VerificationMethod = "email"
	VerificationMethodEmailOTP     VerificationMethod = "email-otp"
	VerificationMethodEmail2FA     VerificationMethod = "email-2fa"
	VerificationMethodEmailCaptcha VerificationMethod = "email-captcha"
	VerificationMethodTOTP2FA      VerificationMethod = "totp-2fa"
)

// VerificationReason is the server supplied hint on why an account has to
// complete verification.
type VerificationReason string

const (
	VerificationReasonSignIn                 VerificationReason = "login"
	VerificationReasonSignUp                 VerificationReason = "signup"
	VerificationReasonChangePassword         VerificationReason = "change_password"
	VerificationReasonForgotPassword         VerificationReason = "forgot_password"
	VerificationReasonPrimaryEmailVerified   VerificationReason = "primary_email_verified"
	VerificationReasonSecondaryEmailVerified VerificationReason = "secondary_email_verified"
)

// SigninResult is the payload returned by the auth server for a sign in
// attempt. It is consumed once by the Router.
type SigninResult struct {
	UID                string             `json:"uid"`
	SessionToken       string             `json:"sessionToken"`
	KeyFetchToken      string             `json:"keyFetchToken,omitempty"`
	UnwrapBKey         string             `json:"unwrapBKey,omitempty"`
	Verified           bool               `json:"verified"`
	VerificationMethod VerificationMethod `json:"verificationMethod,omitempty"`
	VerificationReason VerificationReason `json:"verificationReason,omitempty"`
}

// OAuthResult is what the OAuth completion step hands back to the relying party.
type OAuthResult struct {
	RedirectURL       string `json:"redirect"`
	AuthorizationCode string `json:"code"`
	State             string `json:"state"`
}

// LocationState holds the fields carried forward to the destination screen.
type LocationState struct {
	Email              string             `json:"email,omitempty"`
	UID                string             `json:"uid,omitempty"`
	SessionToken       string             `json:"sessionToken,omitempty"`
	KeyFetchToken      string             `json:"keyFetchToken,omitempty"`
	UnwrapBKey         string             `json:"unwrapBKey,omitempty"`
	VerificationMethod VerificationMethod `json:"verificationMethod,omitempty"`
	VerificationReason VerificationReason `json:"verificationReason,omitempty"`
	OAuthResult        *OAuthResult       `json:"oAuthResult,omitempty"`
}

// NavigationTarget is the next screen computed for a SigninResult.
type NavigationTarget struct {
	To           string         `json:"to"`
	State        *LocationState `json:"state,omitempty"`
	HardNavigate bool           `json:"hard_navigate"`
}

// Authenticator is the auth server collaborator used to begin a sign in.
type Authenticator interface {
	BeginSignin(ctx context.Context, email, password string) (SigninResult, error)
	BeginCachedSignin(ctx context.Context, sessionToken string) (SigninResult, error)
}

// OAuthFinisher completes the OAuth flow for a signed in session and
// returns where to send the user.
type OAuthFinisher interface {
	FinishOAuthFlow(ctx context.Context, uid, sessionToken, keyFetchToken, unwrapBKey string) (OAuthResult, error)
}

// OAuthFinisherFunc adapts a function to the OAuthFinisher interface.
type OAuthFinisherFunc func(ctx context.Context, uid, sessionToken, keyFetchToken, unwrapBKey string) (OAuthResult, error)

// FinishOAuthFlow implements OAuthFinisher.
func (f OAuthFinisherFunc) FinishOAuthFlow(ctx context.Context, uid, sessionToken, keyFetchToken, unwrapBKey string) (OAuthResult, error) {
	return f(ctx, uid, sessionToken, keyFetchToken, unwrapBKey)
}

// Navigator performs the navigation side effect for a NavigationTarget.
type Navigator interface {
	Navigate(ctx context.Context, to string, state *LocationState) error
	HardNavigate(ctx context.Context, to string) error
}

func withQuery(path, query string) string {
	query = strings.TrimSpace(query)
	if query == "" || query == "?" {
		return path
	}
	if !strings.HasPrefix(query, "?") {
		query = "?" + query
	}
	return path + query
}
