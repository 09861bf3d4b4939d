package signin

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the result of a sign in submission. Errors meant for the user
// are returned as data in Error.
type Outcome struct {
	Target           *NavigationTarget `json:"target,omitempty"`
	Error            *AuthUIError      `json:"error,omitempty"`
	PasswordRequired bool              `json:"password_required,omitempty"`
}

// PasswordSigninRequest is a password submission.
type PasswordSigninRequest struct {
	Email       string
	Password    string
	Integration Integration
	QueryParams string
	Finisher    OAuthFinisher
}

// Validate will run validation rules
func (r PasswordSigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required.Error("Valid password required"),
		),
	)
}

// CachedSigninRequest signs in with a stored session. When SessionToken is
// empty the token of the stored account UID (or the current account) is used.
type CachedSigninRequest struct {
	UID          string
	Email        string
	SessionToken string
	Integration  Integration
	QueryParams  string
	Finisher     OAuthFinisher
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithFlowLogger overrides the flow logger.
func WithFlowLogger(logger Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFlowLoggerProvider resolves the flow logger from a provider.
func WithFlowLoggerProvider(provider LoggerProvider) FlowOption {
	return func(f *Flow) {
		if provider != nil {
			_, f.logger = ResolveLogger("signin.flow", provider, f.logger)
		}
	}
}

// WithFlowActivitySink publishes sign in events to sink.
func WithFlowActivitySink(sink ActivitySink) FlowOption {
	return func(f *Flow) {
		f.activitySink = normalizeActivitySink(sink)
	}
}

// WithFlowRouter overrides the router used to compute targets.
func WithFlowRouter(router *Router) FlowOption {
	return func(f *Flow) {
		if router != nil {
			f.router = router
		}
	}
}

// WithFlowStorage overrides the account storage.
func WithFlowStorage(storage AccountStorage) FlowOption {
	return func(f *Flow) {
		if storage != nil {
			f.storage = storage
		}
	}
}

// WithFlowCodeIssuer builds OAuth finishers for requests that carry an
// OAuthIntegration and no finisher.
func WithFlowCodeIssuer(issuer OAuthCodeIssuer) FlowOption {
	return func(f *Flow) {
		f.codeIssuer = issuer
	}
}

// WithFlowTracer overrides the tracer.
func WithFlowTracer(tracer trace.Tracer) FlowOption {
	return func(f *Flow) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

// WithFlowClock injects a custom clock.
func WithFlowClock(clock func() time.Time) FlowOption {
	return func(f *Flow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// Flow orchestrates a sign in submission: it calls the auth server, stores
// the account and routes to the next screen.
type Flow struct {
	authenticator Authenticator
	router        *Router
	storage       AccountStorage
	codeIssuer    OAuthCodeIssuer
	activitySink  ActivitySink
	logger        Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewFlow returns a Flow backed by authenticator.
func NewFlow(authenticator Authenticator, opts ...FlowOption) *Flow {
	f := &Flow{
		authenticator: authenticator,
		storage:       NewMemoryAccountStorage(),
		activitySink:  noopActivitySink{},
		logger:        defaultLogger(),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.router == nil {
		f.router = NewRouter(
			WithRouterLogger(f.logger),
			WithRouterActivitySink(f.activitySink),
			WithRouterTracer(f.tracer),
			WithRouterClock(f.now),
		)
	}
	return f
}

// Router returns the router used by the flow.
func (f *Flow) Router() *Router {
	return f.router
}

// Storage returns the account storage used by the flow.
func (f *Flow) Storage() AccountStorage {
	return f.storage
}

// SigninWithPassword signs in with email and password. The returned error is
// only set for invalid requests or missing dependencies.
func (f *Flow) SigninWithPassword(ctx context.Context, req PasswordSigninRequest) (Outcome, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return Outcome{}, invalidRequest(err)
	}
	if f.authenticator == nil {
		return Outcome{}, ErrMissingDependency
	}

	ctx, span := f.tracer.Start(ctx, "signin.password")
	defer span.End()

	result, err := f.authenticator.BeginSignin(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin signin failed")
		return f.passwordFailure(ctx, req, err), nil
	}
	span.SetAttributes(
		attribute.String("signin.uid", result.UID),
		attribute.Bool("signin.verified", result.Verified),
	)

	f.storeAccount(ctx, StoredAccount{
		UID:             result.UID,
		Email:           req.Email,
		SessionToken:    result.SessionToken,
		SessionVerified: result.Verified,
	})

	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType: ActivityEventSigninSuccess,
		UserID:    result.UID,
		FromStage: StageAwaitingCredentials,
		ToStage:   StageVerifying,
		Metadata: map[string]any{
			"verified":            result.Verified,
			"verification_method": result.VerificationMethod,
			"verification_reason": result.VerificationReason,
		},
	})

	return f.route(ctx, NavigationOptions{
		Email:       req.Email,
		Signin:      result,
		Integration: req.Integration,
		QueryParams: req.QueryParams,
		Finisher:    f.finisherFor(req.Integration, req.Finisher),
	}), nil
}

func (f *Flow) passwordFailure(ctx context.Context, req PasswordSigninRequest, err error) Outcome {
	uiErr := ErrorFromCollaborator(err)

	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType: ActivityEventSigninFailure,
		FromStage: StageAwaitingCredentials,
		ToStage:   StageAwaitingCredentials,
		Metadata:  map[string]any{"errno": uiErr.Errno, MetadataKeyEmailDigest: EmailDigest(req.Email)},
	})

	switch uiErr.Errno {
	case ErrnoEmailHardBounce:
		target := BounceTarget(BounceOriginSignin, req.Email, req.QueryParams)
		return Outcome{Target: &target}
	case ErrnoTOTPRequired, ErrnoInsufficientACRValues:
		target := NavigationTarget{
			To:    withQuery(PathInlineTOTPSetup, req.QueryParams),
			State: &LocationState{Email: req.Email},
		}
		return Outcome{Target: &target}
	default:
		f.logger.Warn("sign in failed", "errno", uiErr.Errno, "error", err)
		return Outcome{Error: uiErr}
	}
}

// SigninWithCachedSession signs in with a previously stored session token.
// An expired session asks the user for a password.
func (f *Flow) SigninWithCachedSession(ctx context.Context, req CachedSigninRequest) (Outcome, error) {
	if f.authenticator == nil {
		return Outcome{}, ErrMissingDependency
	}

	account, err := f.cachedAccount(ctx, req)
	if err != nil {
		if IsAccountNotFound(err) {
			return Outcome{PasswordRequired: true}, nil
		}
		return Outcome{}, err
	}
	if account.SessionToken == "" {
		return Outcome{PasswordRequired: true}, nil
	}

	ctx, span := f.tracer.Start(ctx, "signin.cached",
		trace.WithAttributes(attribute.String("signin.uid", account.UID)))
	defer span.End()

	result, err := f.authenticator.BeginCachedSignin(ctx, account.SessionToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin cached signin failed")

		uiErr := ErrorFromCollaborator(err)
		recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
			EventType: ActivityEventSigninFailure,
			UserID:    account.UID,
			FromStage: StageAwaitingCredentials,
			ToStage:   StageAwaitingCredentials,
			Metadata:  map[string]any{"errno": uiErr.Errno, "cached": true},
		})

		if uiErr.Errno == ErrnoInvalidToken {
			f.clearSession(ctx, account.UID)
			return Outcome{Error: SessionExpiredError(), PasswordRequired: true}, nil
		}
		f.logger.Warn("cached sign in failed", "uid", account.UID, "errno", uiErr.Errno, "error", err)
		return Outcome{Error: uiErr}, nil
	}

	if result.UID == "" {
		result.UID = account.UID
	}
	if account.UID == "" {
		account.UID = result.UID
	}
	if result.SessionToken == "" {
		result.SessionToken = account.SessionToken
	}

	account.SessionVerified = result.Verified
	account.LastLogin = time.Time{}
	account.VerifiedAt = nil
	f.storeAccount(ctx, account)

	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType: ActivityEventCachedSignin,
		UserID:    result.UID,
		FromStage: StageAwaitingCredentials,
		ToStage:   StageVerifying,
		Metadata:  map[string]any{"verified": result.Verified},
	})

	email := req.Email
	if email == "" {
		email = account.Email
	}
	return f.route(ctx, NavigationOptions{
		Email:       email,
		Signin:      result,
		Integration: req.Integration,
		QueryParams: req.QueryParams,
		Finisher:    f.finisherFor(req.Integration, req.Finisher),
	}), nil
}

func (f *Flow) cachedAccount(ctx context.Context, req CachedSigninRequest) (StoredAccount, error) {
	if req.SessionToken != "" {
		account := StoredAccount{UID: req.UID, Email: req.Email, SessionToken: req.SessionToken}
		if req.UID != "" {
			if stored, err := f.storage.Get(ctx, req.UID); err == nil {
				stored.SessionToken = req.SessionToken
				if req.Email != "" {
					stored.Email = req.Email
				}
				account = stored
			}
		}
		return account, nil
	}
	if req.UID != "" {
		return f.storage.Get(ctx, req.UID)
	}
	return f.storage.Current(ctx)
}

func (f *Flow) route(ctx context.Context, opts NavigationOptions) Outcome {
	target, err := f.router.Target(ctx, opts)
	if err != nil {
		return Outcome{Error: OAuthDataError()}
	}
	return Outcome{Target: &target}
}

func (f *Flow) finisherFor(integration Integration, finisher OAuthFinisher) OAuthFinisher {
	if finisher != nil || f.codeIssuer == nil {
		return finisher
	}
	if oauth, ok := integration.(*OAuthIntegration); ok && oauth != nil {
		return NewOAuthFlowFinisher(f.codeIssuer, oauth)
	}
	return nil
}

func (f *Flow) storeAccount(ctx context.Context, account StoredAccount) {
	if account.UID == "" {
		return
	}
	cmd := NewStoreAccountCommand(f.storage)
	cmd.now = f.now
	if err := cmd.Execute(ctx, StoreAccountMessage{Account: account, MakeCurrent: true}); err != nil {
		f.logger.Warn("unable to store account", "uid", account.UID, "error", err)
	}
}

func (f *Flow) clearSession(ctx context.Context, uid string) {
	if uid == "" {
		return
	}
	cmd := NewClearAccountCommand(f.storage)
	if err := cmd.Execute(ctx, ClearAccountMessage{UID: uid, KeepAccount: true}); err != nil {
		f.logger.Warn("unable to clear account session", "uid", uid, "error", err)
		return
	}
	recordActivity(ctx, f.activitySink, f.logger, f.now, ActivityEvent{
		EventType: ActivityEventAccountCleared,
		UserID:    uid,
		FromStage: StageAwaitingCredentials,
		ToStage:   StageAwaitingCredentials,
	})
}

func invalidRequest(err error) error {
	clone := ErrInvalidSigninRequest.Clone()
	if clone == nil {
		return err
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{"validation": err.Error()})
}

// SignupAccount is the account a signup confirmation code is checked for.
type SignupAccount struct {
	Email         string
	UID           string
	SessionToken  string
	KeyFetchToken string
	UnwrapBKey    string
}

// ResolveSignupAccount reads the account being confirmed from the carried
// state, falling back to the current stored account. When values are still
// missing it returns a hard navigation to the content server root.
func ResolveSignupAccount(ctx context.Context, state *LocationState, storage AccountStorage, contentServerURL string) (SignupAccount, *NavigationTarget) {
	var account SignupAccount
	if state != nil {
		account = SignupAccount{
			Email:         state.Email,
			UID:           state.UID,
			SessionToken:  state.SessionToken,
			KeyFetchToken: state.KeyFetchToken,
			UnwrapBKey:    state.UnwrapBKey,
		}
	}

	if (account.Email == "" || account.UID == "" || account.SessionToken == "") && storage != nil {
		if stored, err := storage.Current(ctx); err == nil {
			account.Email = firstNonEmpty(account.Email, stored.Email)
			account.UID = firstNonEmpty(account.UID, stored.UID)
			account.SessionToken = firstNonEmpty(account.SessionToken, stored.SessionToken)
		}
	}

	if account.Email == "" || account.UID == "" || account.SessionToken == "" {
		target := ContentServerTarget(contentServerURL, "/", nil)
		return SignupAccount{}, &target
	}
	return account, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsInvalidSigninRequest reports whether err came from request validation.
func IsInvalidSigninRequest(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeInvalidRequest
	}
	return false
}
