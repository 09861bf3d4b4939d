package signin

import (
	"context"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-signin/middleware/csrf"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterSigninRoutes mounts the sign in controller on app.
func RegisterSigninRoutes[T any](app router.Router[T], opts ...SigninControllerOption) *SigninController {
	controller := NewSigninController(opts...)
	controller.RegisterRoutes(app)
	return controller
}

type SigninControllerRoutes struct {
	Signin           string
	Cached           string
	DifferentAccount string
	State            string
	Accounts         string
	CSRF             string
}

type SigninController struct {
	Debug            bool
	Logger           Logger
	Flow             *Flow
	Sealer           *StateSealer
	Routes           *SigninControllerRoutes
	ContentServerURL string
	SecureCookies    bool
	ErrorHandler     router.ErrorHandler
	// CSRF guards the sign in POST routes when set.
	CSRF router.MiddlewareFunc
}

type SigninControllerOption func(*SigninController) *SigninController

func WithSigninFlow(flow *Flow) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.Flow = flow
		return c
	}
}

func WithSigninStateSealer(sealer *StateSealer) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.Sealer = sealer
		return c
	}
}

func WithSigninLogger(logger Logger) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithSigninDebug(debug bool) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.Debug = debug
		return c
	}
}

func WithSigninSecureCookies(secure bool) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.SecureCookies = secure
		return c
	}
}

func WithSigninCSRF(mw router.MiddlewareFunc) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.CSRF = mw
		return c
	}
}

func WithSigninErrorHandler(handler router.ErrorHandler) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// WithSigninConfig applies the HTTP related settings of cfg.
func WithSigninConfig(cfg Config) SigninControllerOption {
	return func(c *SigninController) *SigninController {
		c.Debug = cfg.Debug
		c.SecureCookies = cfg.SecureCookies
		c.ContentServerURL = cfg.ContentServerURL
		return c
	}
}

// NewSigninController builds the controller. It panics without a Flow or a
// StateSealer.
func NewSigninController(opts ...SigninControllerOption) *SigninController {
	_, logger := ResolveLogger("signin.http", nil, nil)
	c := &SigninController{
		Logger:       logger,
		ErrorHandler: defaultErrHandler,
		Routes: &SigninControllerRoutes{
			Signin:           "/signin",
			Cached:           "/signin/cached",
			DifferentAccount: "/signin/different-account",
			State:            "/signin/state",
			Accounts:         "/signin/accounts",
			CSRF:             "/signin/csrf",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flow == nil {
		panic("Missing Flow in signin controller...")
	}

	if c.Sealer == nil {
		panic("Missing StateSealer in signin controller...")
	}

	return c
}

// RegisterRoutes registers the sign in routes on group.
func (c *SigninController) RegisterRoutes(group RouteRegistrar) {
	var guard []router.MiddlewareFunc
	if c.CSRF != nil {
		guard = append(guard, c.CSRF)
		group.Get(c.Routes.CSRF, csrf.TokenHandler(csrf.DefaultContextKey), c.CSRF).SetName("signin-csrf.get")
	}

	group.Post(c.Routes.Signin, c.SigninPost, guard...).SetName("signin.post")
	group.Post(c.Routes.Cached, c.CachedSigninPost, guard...).SetName("signin-cached.post")
	group.Get(c.Routes.DifferentAccount, c.DifferentAccount).SetName("signin-different-account.get")
	group.Get(c.Routes.State, c.StateGet).SetName("signin-state.get")
	group.Get(c.Routes.Accounts, c.AccountsGet).SetName("signin-accounts.get")
}

// IntegrationPayload carries the relying party parameters of a request.
type IntegrationPayload struct {
	ClientID    string `form:"client_id" json:"client_id"`
	RedirectURI string `form:"redirect_uri" json:"redirect_uri"`
	Scope       string `form:"scope" json:"scope"`
	State       string `form:"state" json:"state"`
	AcrValues   string `form:"acr_values" json:"acr_values"`
	Sync        bool   `form:"sync" json:"sync"`
}

// Integration returns an OAuth integration when a client id is present.
func (p IntegrationPayload) Integration() Integration {
	if strings.TrimSpace(p.ClientID) == "" {
		return WebIntegration{}
	}
	return &OAuthIntegration{
		ClientID:    p.ClientID,
		RedirectURI: p.RedirectURI,
		Scope:       p.Scope,
		State:       p.State,
		AcrValues:   p.AcrValues,
		Sync:        p.Sync,
	}
}

// SigninPayload is the password sign in form.
type SigninPayload struct {
	IntegrationPayload
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Query    string `form:"query" json:"query"`
}

// Validate will run validation rules
func (p SigninPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
		validation.Field(&p.RedirectURI, is.URL),
	)
}

// CachedSigninPayload signs in with a stored session.
type CachedSigninPayload struct {
	IntegrationPayload
	SessionToken string `form:"session_token" json:"session_token"`
	UID          string `form:"uid" json:"uid"`
	Email        string `form:"email" json:"email"`
	Query        string `form:"query" json:"query"`
}

func (c *SigninController) SigninPost(ctx router.Context) error {
	payload := new(SigninPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, invalidRequest(err))
	}

	if err := payload.Validate(); err != nil {
		return c.validationError(ctx, err)
	}

	if c.Debug {
		redacted := *payload
		redacted.Password = "********"
		c.Logger.Debug("signin request", "payload", print.MaybePrettyJSON(redacted))
	}

	outcome, err := c.Flow.SigninWithPassword(ctx.Context(), PasswordSigninRequest{
		Email:       payload.Email,
		Password:    payload.Password,
		Integration: payload.Integration(),
		QueryParams: payload.Query,
	})
	if err != nil {
		if IsInvalidSigninRequest(err) {
			return c.validationError(ctx, err)
		}
		return c.ErrorHandler(ctx, err)
	}

	return c.respond(ctx, outcome)
}

func (c *SigninController) CachedSigninPost(ctx router.Context) error {
	payload := new(CachedSigninPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, invalidRequest(err))
	}

	outcome, err := c.Flow.SigninWithCachedSession(ctx.Context(), CachedSigninRequest{
		UID:          payload.UID,
		Email:        payload.Email,
		SessionToken: payload.SessionToken,
		Integration:  payload.Integration(),
		QueryParams:  payload.Query,
	})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return c.respond(ctx, outcome)
}

func (c *SigninController) DifferentAccount(ctx router.Context) error {
	target := DifferentAccountTarget(ctx.Query("email"))
	to := target.To
	if c.ContentServerURL != "" {
		to = strings.TrimRight(c.ContentServerURL, "/") + to
	}
	return ctx.Redirect(to, http.StatusSeeOther)
}

// StateGet opens the sealed state cookie. The cookie is dropped once read.
func (c *SigninController) StateGet(ctx router.Context) error {
	token := ctx.Cookies(StateCookieName)
	if token == "" {
		return c.ErrorHandler(ctx, ErrStateSealInvalid)
	}

	c.deleteStateCookie(ctx)

	sealed, err := c.Sealer.Open(token)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, sealed)
}

// AccountSummary is the public view of a stored account.
type AccountSummary struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	LastLogin time.Time `json:"last_login"`
}

func (c *SigninController) AccountsGet(ctx router.Context) error {
	lister, ok := c.Flow.Storage().(AccountLister)
	if !ok {
		return c.ErrorHandler(ctx, ErrMissingDependency)
	}

	accounts, err := lister.List(ctx.Context())
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	out := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, AccountSummary{
			UID:       account.UID,
			Email:     account.Email,
			Verified:  account.SessionVerified,
			LastLogin: account.LastLogin,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"accounts": out,
	})
}

func (c *SigninController) respond(ctx router.Context, outcome Outcome) error {
	if outcome.Error != nil {
		status := http.StatusBadRequest
		if rich := outcome.Error.Rich(); rich != nil && rich.Code != 0 {
			status = rich.Code
		}
		return ctx.JSON(status, map[string]any{
			"error":             outcome.Error,
			"password_required": outcome.PasswordRequired,
		})
	}

	if outcome.Target == nil {
		return ctx.JSON(http.StatusOK, map[string]any{
			"password_required": outcome.PasswordRequired,
		})
	}

	return Dispatch(ctx.Context(), *outcome.Target, c.Navigator(ctx))
}

func (c *SigninController) validationError(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusBadRequest, map[string]any{
		"error":      ErrInvalidSigninRequest.Message,
		"validation": err,
	})
}

func (c *SigninController) deleteStateCookie(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * 24),
		Secure:   c.SecureCookies,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// Navigator returns the HTTPNavigator for the current request.
func (c *SigninController) Navigator(ctx router.Context) *HTTPNavigator {
	return &HTTPNavigator{
		ctx:    ctx,
		sealer: c.Sealer,
		secure: c.SecureCookies,
		json:   wantsJSON(ctx),
	}
}

// HTTPNavigator answers a request with the navigation side effect. JSON
// clients get the target as a body, browsers get a 303 with the location
// state sealed into a cookie.
type HTTPNavigator struct {
	ctx    router.Context
	sealer *StateSealer
	secure bool
	json   bool
}

// Navigate implements Navigator.
func (n *HTTPNavigator) Navigate(_ context.Context, to string, state *LocationState) error {
	if n.json {
		return n.ctx.JSON(http.StatusOK, NavigationTarget{To: to, State: state})
	}

	if state != nil {
		token, err := n.sealer.Seal(to, state)
		if err != nil {
			return err
		}
		n.ctx.Cookie(&router.Cookie{
			Name:     StateCookieName,
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(n.sealer.TTL()),
			Secure:   n.secure,
			HTTPOnly: true,
			SameSite: "Lax",
		})
	}
	return n.ctx.Redirect(to, http.StatusSeeOther)
}

// HardNavigate implements Navigator.
func (n *HTTPNavigator) HardNavigate(_ context.Context, to string) error {
	if n.json {
		return n.ctx.JSON(http.StatusOK, NavigationTarget{To: to, HardNavigate: true})
	}
	return n.ctx.Redirect(to, http.StatusSeeOther)
}

func wantsJSON(ctx router.Context) bool {
	accept := strings.ToLower(ctx.Header("Accept"))
	return strings.Contains(accept, "application/json")
}

func defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"category":  richErr.Category,
		},
	})
}

var _ Navigator = (*HTTPNavigator)(nil)
