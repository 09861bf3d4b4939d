package signin

import (
	"context"
	"net/url"

	goerrors "github.com/goliatone/go-errors"
)

// OAuthCodeRequest is what an OAuthCodeIssuer needs to mint an authorization code.
type OAuthCodeRequest struct {
	ClientID      string
	RedirectURI   string
	Scope         string
	State         string
	AcrValues     string
	UID           string
	SessionToken  string
	KeyFetchToken string
	UnwrapBKey    string
}

// OAuthCodeIssuer exchanges a session for an authorization code.
type OAuthCodeIssuer interface {
	IssueAuthorizationCode(ctx context.Context, req OAuthCodeRequest) (OAuthResult, error)
}

type oauthFlowFinisher struct {
	issuer      OAuthCodeIssuer
	integration *OAuthIntegration
}

// NewOAuthFlowFinisher returns an OAuthFinisher that asks issuer for a code
// and builds the relying party redirect.
func NewOAuthFlowFinisher(issuer OAuthCodeIssuer, integration *OAuthIntegration) OAuthFinisher {
	return &oauthFlowFinisher{issuer: issuer, integration: integration}
}

func (f *oauthFlowFinisher) FinishOAuthFlow(ctx context.Context, uid, sessionToken, keyFetchToken, unwrapBKey string) (OAuthResult, error) {
	if f.issuer == nil || f.integration == nil {
		return OAuthResult{}, ErrMissingDependency
	}

	result, err := f.issuer.IssueAuthorizationCode(ctx, OAuthCodeRequest{
		ClientID:      f.integration.ClientID,
		RedirectURI:   f.integration.RedirectURI,
		Scope:         f.integration.Scope,
		State:         f.integration.State,
		AcrValues:     f.integration.AcrValues,
		UID:           uid,
		SessionToken:  sessionToken,
		KeyFetchToken: keyFetchToken,
		UnwrapBKey:    unwrapBKey,
	})
	if err != nil {
		return OAuthResult{}, err
	}

	if result.State == "" {
		result.State = f.integration.State
	}
	if result.AuthorizationCode == "" {
		return OAuthResult{}, goerrors.New("authorization code missing", goerrors.CategoryExternal)
	}

	redirect := result.RedirectURL
	if redirect == "" {
		redirect = f.integration.RedirectURI
	}
	redirect, err = buildOAuthRedirect(redirect, result.AuthorizationCode, result.State)
	if err != nil {
		return OAuthResult{}, err
	}
	result.RedirectURL = redirect
	return result, nil
}

func buildOAuthRedirect(redirectURI, code, state string) (string, error) {
	if redirectURI == "" {
		return "", goerrors.New("oauth redirect uri missing", goerrors.CategoryValidation)
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid oauth redirect uri")
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
