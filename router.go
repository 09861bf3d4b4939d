package signin

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// In-app destinations produced by the router and flow.
const (
	PathSigninTOTPCode    = "/signin_totp_code"
	PathConfirmSignupCode = "/confirm_signup_code"
	PathSigninTokenCode   = "/signin_token_code"
	PathSettings          = "/settings"
	PathSigninBounced     = "/signin_bounced"
	PathInlineTOTPSetup   = "/inline_totp_setup"
)

const tracerName = "github.com/goliatone/go-signin"

// Stage is the position of a sign in attempt.
type Stage string

const (
	StageAwaitingCredentials Stage = "awaiting_credentials"
	StageVerifying           Stage = "verifying"
	StageNeedsTotp           Stage = "needs_totp"
	StageNeedsSignupCode     Stage = "needs_signup_code"
	StageNeedsTokenCode      Stage = "needs_token_code"
	StageOAuthRedirecting    Stage = "oauth_redirecting"
	StageSettled             Stage = "settled"
)

// IsTerminal reports whether the router hands control elsewhere from s.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageNeedsTotp, StageNeedsSignupCode, StageNeedsTokenCode, StageOAuthRedirecting, StageSettled:
		return true
	default:
		return false
	}
}

var stageTransitions = map[Stage]map[Stage]struct{}{
	StageAwaitingCredentials: {
		StageVerifying: {},
	},
	StageVerifying: {
		StageNeedsTotp:        {},
		StageNeedsSignupCode:  {},
		StageNeedsTokenCode:   {},
		StageOAuthRedirecting: {},
		StageSettled:          {},
	},
}

// CanTransition reports whether from -> to is a valid stage change.
func CanTransition(from, to Stage) bool {
	next, ok := stageTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Classify selects the destination stage for a sign in result. The first
// matching rule wins.
func Classify(result SigninResult, integration Integration) Stage {
	isOAuth := isOAuthIntegration(integration)

	switch {
	case !result.Verified && (requiresTOTP(result) || (isOAuth && integration.WantsTwoStepAuthentication())):
		return StageNeedsTotp
	case !result.Verified && result.VerificationReason == VerificationReasonSignUp:
		return StageNeedsSignupCode
	case !result.Verified:
		return StageNeedsTokenCode
	case isOAuth:
		return StageOAuthRedirecting
	default:
		return StageSettled
	}
}

func requiresTOTP(result SigninResult) bool {
	if result.VerificationMethod != VerificationMethodTOTP2FA {
		return false
	}
	return result.VerificationReason == VerificationReasonSignIn ||
		result.VerificationReason == VerificationReasonChangePassword
}

// NavigationOptions is the input of Router.Target.
type NavigationOptions struct {
	Email       string
	Signin      SigninResult
	UnwrapBKey  string
	Integration Integration
	QueryParams string
	Finisher    OAuthFinisher
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterLogger overrides the router logger.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouterLoggerProvider resolves the router logger from a provider.
func WithRouterLoggerProvider(provider LoggerProvider) RouterOption {
	return func(r *Router) {
		if provider != nil {
			_, r.logger = ResolveLogger("signin.router", provider, r.logger)
		}
	}
}

// WithRouterActivitySink publishes stage transitions to sink.
func WithRouterActivitySink(sink ActivitySink) RouterOption {
	return func(r *Router) {
		r.activitySink = normalizeActivitySink(sink)
	}
}

// WithRouterTracer overrides the tracer used for OAuth completion spans.
func WithRouterTracer(tracer trace.Tracer) RouterOption {
	return func(r *Router) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithRouterClock injects a custom clock.
func WithRouterClock(clock func() time.Time) RouterOption {
	return func(r *Router) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Router maps a sign in result to the next screen.
type Router struct {
	logger       Logger
	activitySink ActivitySink
	tracer       trace.Tracer
	now          func() time.Time
}

// NewRouter returns a Router with the given options applied.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		logger:       defaultLogger(),
		activitySink: noopActivitySink{},
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Target computes the navigation target for opts. The only error it returns
// wraps ErrOAuthData.
func (r *Router) Target(ctx context.Context, opts NavigationOptions) (NavigationTarget, error) {
	result := opts.Signin
	stage := Classify(result, opts.Integration)
	isOAuth := isOAuthIntegration(opts.Integration)

	var target NavigationTarget
	switch stage {
	case StageNeedsTotp:
		state := &LocationState{
			VerificationReason: result.VerificationReason,
			VerificationMethod: result.VerificationMethod,
		}
		if isOAuth {
			oauth, err := r.finish(ctx, opts)
			if err != nil {
				return NavigationTarget{}, err
			}
			state.OAuthResult = &oauth
		}
		target = NavigationTarget{To: withQuery(PathSigninTOTPCode, opts.QueryParams), State: state}

	case StageNeedsSignupCode:
		target = NavigationTarget{
			To: withQuery(PathConfirmSignupCode, opts.QueryParams),
			State: &LocationState{
				Email:         opts.Email,
				SessionToken:  result.SessionToken,
				KeyFetchToken: result.KeyFetchToken,
				UnwrapBKey:    r.unwrapBKey(opts),
			},
		}

	case StageNeedsTokenCode:
		state := &LocationState{
			Email:              opts.Email,
			VerificationReason: result.VerificationReason,
		}
		if isOAuth {
			oauth, err := r.finish(ctx, opts)
			if err != nil {
				return NavigationTarget{}, err
			}
			state.OAuthResult = &oauth
		}
		target = NavigationTarget{To: withQuery(PathSigninTokenCode, opts.QueryParams), State: state}

	case StageOAuthRedirecting:
		oauth, err := r.finish(ctx, opts)
		if err != nil {
			return NavigationTarget{}, err
		}
		target = NavigationTarget{To: oauth.RedirectURL, HardNavigate: true}

	default:
		target = NavigationTarget{To: withQuery(PathSettings, opts.QueryParams)}
	}

	recordActivity(ctx, r.activitySink, r.logger, r.now, ActivityEvent{
		EventType: ActivityEventNavigation,
		UserID:    result.UID,
		FromStage: StageVerifying,
		ToStage:   stage,
		Metadata: map[string]any{
			"to":            target.To,
			"hard_navigate": target.HardNavigate,
		},
	})
	r.logger.Debug("sign in routed", "uid", result.UID, "stage", stage, "to", target.To)

	return target, nil
}

func (r *Router) unwrapBKey(opts NavigationOptions) string {
	if opts.UnwrapBKey != "" {
		return opts.UnwrapBKey
	}
	return opts.Signin.UnwrapBKey
}

func (r *Router) finish(ctx context.Context, opts NavigationOptions) (OAuthResult, error) {
	ctx, span := r.tracer.Start(ctx, "signin.finish_oauth_flow",
		trace.WithAttributes(attribute.String("signin.uid", opts.Signin.UID)))
	defer span.End()

	if opts.Finisher == nil {
		span.RecordError(ErrMissingDependency)
		return OAuthResult{}, oauthDataError(ErrMissingDependency, "oauth finisher not configured")
	}

	result, err := opts.Finisher.FinishOAuthFlow(ctx,
		opts.Signin.UID,
		opts.Signin.SessionToken,
		opts.Signin.KeyFetchToken,
		r.unwrapBKey(opts),
	)
	if err != nil {
		span.RecordError(err)
		r.logger.Error("oauth completion failed", "uid", opts.Signin.UID, "error", err)
		recordActivity(ctx, r.activitySink, r.logger, r.now, ActivityEvent{
			EventType: ActivityEventOAuthFailure,
			UserID:    opts.Signin.UID,
			FromStage: StageVerifying,
			ToStage:   StageOAuthRedirecting,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return OAuthResult{}, oauthDataError(err, "oauth completion failed")
	}
	return result, nil
}

func oauthDataError(err error, reason string) error {
	clone := ErrOAuthData.Clone()
	if clone == nil {
		return err
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"reason": reason,
		"cause":  err.Error(),
	})
}
