package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ErrTokenMissing is returned when a guarded request carries no token.
var ErrTokenMissing = goerrors.New("sign in form token missing", goerrors.CategoryBadInput).
	WithTextCode("CSRF_TOKEN_MISSING").
	WithCode(http.StatusBadRequest)

// ErrTokenMismatch is returned for forged, tampered or foreign tokens.
var ErrTokenMismatch = goerrors.New("sign in form token mismatch", goerrors.CategoryAuthz).
	WithTextCode("CSRF_TOKEN_MISMATCH").
	WithCode(http.StatusForbidden)

var ErrTokenExpired = goerrors.New("sign in form token expired", goerrors.CategoryAuthz).
	WithTextCode("CSRF_TOKEN_EXPIRED").
	WithCode(http.StatusForbidden)

var ErrSecureKeyMissing = goerrors.New("form token secure key required", goerrors.CategoryInternal).
	WithTextCode("CSRF_KEY_MISSING").
	WithCode(http.StatusInternalServerError)

const (
	// DefaultNonceLength is the number of random bytes in a token.
	DefaultNonceLength = 16
	// DefaultContextKey is where the middleware stores the token for handlers.
	DefaultContextKey = "csrf_token"
	// DefaultFormFieldName is the form field carrying the token.
	DefaultFormFieldName = "_token"
	// DefaultHeaderName is the header carrying the token for JSON clients.
	DefaultHeaderName = "X-CSRF-Token"
	// DefaultExpiration bounds how long a token is accepted.
	DefaultExpiration = time.Hour
)

// Config defines the form token middleware settings. Tokens are stateless:
// an HMAC over a timestamp, a nonce and a digest of the client key.
type Config struct {
	Skip func(router.Context) bool

	NonceLength   int
	ContextKey    string
	FormFieldName string
	HeaderName    string

	// SafeMethods are issued a token but not checked.
	SafeMethods []string
	Expiration  time.Duration

	// SecureKey signs tokens, at least 32 bytes.
	SecureKey []byte

	// ClientKey binds a token to the caller. Defaults to the client IP.
	ClientKey func(router.Context) string

	ErrorHandler router.ErrorHandler
	Now          func() time.Time
}

// New returns the form token middleware. It panics when SecureKey is set
// but shorter than 32 bytes.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := cfg.issue(ctx)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return ctx.Next()
			}

			if err := cfg.validate(ctx, cfg.extract(ctx)); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}
			return ctx.Next()
		}
	}
}

func (cfg Config) issue(ctx router.Context) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, cfg.NonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", cfg.Now().UTC().Unix(), hex.EncodeToString(nonce), clientDigest(cfg.ClientKey(ctx)))
	token := payload + ":" + hex.EncodeToString(cfg.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (cfg Config) validate(ctx router.Context, token string) error {
	if token == "" {
		return ErrTokenMissing
	}
	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return ErrTokenMismatch
	}
	if !hmac.Equal(signature, cfg.sign(strings.Join(parts[:3], ":"))) {
		return ErrTokenMismatch
	}

	if !hmac.Equal([]byte(parts[2]), []byte(clientDigest(cfg.ClientKey(ctx)))) {
		return ErrTokenMismatch
	}

	issuedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}
	if cfg.Expiration > 0 && cfg.Now().UTC().After(time.Unix(issuedAt, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}
	return nil
}

func (cfg Config) extract(ctx router.Context) string {
	if token := ctx.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Header(cfg.HeaderName)
}

func (cfg Config) sign(payload string) []byte {
	mac := hmac.New(sha256.New, cfg.SecureKey)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func clientDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.NonceLength == 0 {
		cfg.NonceLength = DefaultNonceLength
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.ClientKey == nil {
		cfg.ClientKey = func(ctx router.Context) string { return ctx.IP() }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if len(cfg.SecureKey) > 0 && len(cfg.SecureKey) < 32 {
		panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(cfg.SecureKey)))
	}
	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "form token validation failed").
			WithCode(http.StatusInternalServerError)
	}
	return ctx.JSON(richErr.Code, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
			"category":  richErr.Category,
		},
	})
}
