package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	signin "github.com/goliatone/go-signin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxTries = 3
	defaultTimeout  = 10 * time.Second
	tracerName      = "github.com/goliatone/go-signin/authclient"
)

const signInMutation = `mutation SignIn($input: SignInInput!) {
  signIn(input: $input) {
    uid
    sessionToken
    keyFetchToken
    verified
    verificationMethod
    verificationReason
  }
}`

const cachedSigninQuery = `query CachedSignin {
  session {
    uid
    verified
    verificationMethod
    verificationReason
  }
}`

const authorizeMutation = `mutation Authorize($input: AuthorizationInput!) {
  authorize(input: $input) {
    code
    state
    redirect
  }
}`

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger signin.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxTries bounds attempts per call, including the first one.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithBackOff overrides the backoff policy between transport retries.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithService sets the relying party service reported on sign in.
func WithService(service string) Option {
	return func(c *Client) {
		c.service = service
	}
}

// WithTracer overrides the tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// Client talks to the auth server GraphQL endpoint.
type Client struct {
	endpoint   string
	service    string
	httpClient *http.Client
	logger     signin.Logger
	tracer     trace.Tracer
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// New returns a Client for the GraphQL endpoint.
func New(endpoint string, opts ...Option) *Client {
	_, logger := signin.ResolveLogger("signin.authclient", nil, nil)
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		maxTries:   defaultMaxTries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type signinPayload struct {
	UID                string                    `json:"uid"`
	SessionToken       string                    `json:"sessionToken"`
	KeyFetchToken      string                    `json:"keyFetchToken"`
	Verified           bool                      `json:"verified"`
	VerificationMethod signin.VerificationMethod `json:"verificationMethod"`
	VerificationReason signin.VerificationReason `json:"verificationReason"`
}

// BeginSignin implements signin.Authenticator.
func (c *Client) BeginSignin(ctx context.Context, email, password string) (signin.SigninResult, error) {
	creds, err := StretchPassword(email, password)
	if err != nil {
		return signin.SigninResult{}, err
	}

	input := map[string]any{
		"email":  email,
		"authPW": creds.AuthPW,
		"options": map[string]any{
			"keys":               true,
			"verificationMethod": signin.VerificationMethodEmailOTP,
			"service":            c.service,
		},
	}

	var out struct {
		SignIn signinPayload `json:"signIn"`
	}
	if err := c.do(ctx, "SignIn", signInMutation, map[string]any{"input": input}, "", &out); err != nil {
		return signin.SigninResult{}, err
	}

	return signin.SigninResult{
		UID:                out.SignIn.UID,
		SessionToken:       out.SignIn.SessionToken,
		KeyFetchToken:      out.SignIn.KeyFetchToken,
		UnwrapBKey:         creds.UnwrapBKey,
		Verified:           out.SignIn.Verified,
		VerificationMethod: out.SignIn.VerificationMethod,
		VerificationReason: out.SignIn.VerificationReason,
	}, nil
}

// BeginCachedSignin implements signin.Authenticator.
func (c *Client) BeginCachedSignin(ctx context.Context, sessionToken string) (signin.SigninResult, error) {
	var out struct {
		Session signinPayload `json:"session"`
	}
	if err := c.do(ctx, "CachedSignin", cachedSigninQuery, nil, sessionToken, &out); err != nil {
		return signin.SigninResult{}, err
	}

	return signin.SigninResult{
		UID:                out.Session.UID,
		SessionToken:       sessionToken,
		Verified:           out.Session.Verified,
		VerificationMethod: out.Session.VerificationMethod,
		VerificationReason: out.Session.VerificationReason,
	}, nil
}

// IssueAuthorizationCode implements signin.OAuthCodeIssuer.
func (c *Client) IssueAuthorizationCode(ctx context.Context, req signin.OAuthCodeRequest) (signin.OAuthResult, error) {
	input := map[string]any{
		"clientId":    req.ClientID,
		"redirectUri": req.RedirectURI,
		"scope":       req.Scope,
		"state":       req.State,
		"acrValues":   req.AcrValues,
	}

	var out struct {
		Authorize struct {
			Code     string `json:"code"`
			State    string `json:"state"`
			Redirect string `json:"redirect"`
		} `json:"authorize"`
	}
	if err := c.do(ctx, "Authorize", authorizeMutation, map[string]any{"input": input}, req.SessionToken, &out); err != nil {
		return signin.OAuthResult{}, err
	}

	return signin.OAuthResult{
		RedirectURL:       out.Authorize.Redirect,
		AuthorizationCode: out.Authorize.Code,
		State:             out.Authorize.State,
	}, nil
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage       `json:"data"`
	Errors []signin.GraphQLError `json:"errors"`
}

func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any, sessionToken string, out any) error {
	ctx, span := c.tracer.Start(ctx, "authclient."+operation,
		trace.WithAttributes(attribute.String("graphql.operation", operation)))
	defer span.End()

	body, err := json.Marshal(graphQLRequest{OperationName: operation, Query: query, Variables: variables})
	if err != nil {
		return err
	}

	attempt := 0
	data, err := backoff.Retry(ctx, func() (json.RawMessage, error) {
		attempt++
		return c.roundTrip(ctx, operation, body, sessionToken)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("auth server call failed, retrying", "operation", operation, "attempt", attempt, "next", next, "error", err)
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		span.RecordError(err)
		var gqlErr *GraphQLError
		if !errors.As(err, &gqlErr) {
			err = networkError(operation, 0, err)
		}
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(out)
}

func (c *Client) roundTrip(ctx context.Context, operation string, body []byte, sessionToken string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if seconds, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && seconds > 0 {
			return nil, backoff.RetryAfter(seconds)
		}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, networkError(operation, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload graphQLResponse
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, backoff.Permanent(networkError(operation, resp.StatusCode, fmt.Errorf("decode response: %w", err)))
	}

	if len(payload.Errors) > 0 {
		return nil, backoff.Permanent(&GraphQLError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Payload:    signin.GraphQLErrorPayload{GraphQLErrors: payload.Errors},
		})
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, backoff.Permanent(networkError(operation, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)))
	}
	return payload.Data, nil
}

var (
	_ signin.Authenticator   = (*Client)(nil)
	_ signin.OAuthCodeIssuer = (*Client)(nil)
)
