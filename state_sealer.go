package signin

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/hkdf"
)

// StateCookieName is the cookie holding a sealed LocationState.
const StateCookieName = "signin_state"

// DefaultStateTTL bounds how long a sealed state stays valid.
const DefaultStateTTL = 5 * time.Minute

const stateEncryptionInfo = "go-signin/state-encryption"

type stateClaims struct {
	jwt.RegisteredClaims
	To    string        `json:"to,omitempty"`
	State LocationState `json:"state"`
}

// SealedState is an opened state token.
type SealedState struct {
	To        string        `json:"to"`
	State     LocationState `json:"state"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// StateSealer signs location state so it survives a full page load. The
// signed token is wrapped in a direct A256GCM JWE, so session tokens and
// key material in the state are never readable from the cookie.
type StateSealer struct {
	signingKey    []byte
	encryptionKey []byte
	issuer        string
	audience      jwt.ClaimStrings
	ttl           time.Duration
	now           func() time.Time
	logger        Logger
}

// StateSealerOption customizes a StateSealer.
type StateSealerOption func(*StateSealer)

// WithStateSealerClock injects a custom clock.
func WithStateSealerClock(clock func() time.Time) StateSealerOption {
	return func(s *StateSealer) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStateSealerLogger overrides the logger.
func WithStateSealerLogger(logger Logger) StateSealerOption {
	return func(s *StateSealer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStateSealer returns a sealer for HS256 tokens encrypted with a key
// derived from signingKey. A zero ttl uses DefaultStateTTL.
func NewStateSealer(signingKey []byte, issuer string, audience []string, ttl time.Duration, opts ...StateSealerOption) *StateSealer {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	s := &StateSealer{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   append(jwt.ClaimStrings(nil), audience...),
		ttl:        ttl,
		now:        time.Now,
		logger:     defaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if len(signingKey) > 0 {
		s.encryptionKey = deriveStateKey(signingKey)
	}
	return s
}

func deriveStateKey(secret []byte) []byte {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(stateEncryptionInfo)), key); err != nil {
		return nil
	}
	return key
}

// TTL returns how long sealed tokens stay valid.
func (s *StateSealer) TTL() time.Duration {
	return s.ttl
}

// Seal signs state for destination to.
func (s *StateSealer) Seal(to string, state *LocationState) (string, error) {
	if len(s.signingKey) == 0 || len(s.encryptionKey) == 0 {
		return "", ErrMissingDependency
	}

	now := s.now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		To: to,
	}
	if state != nil {
		claims.State = *state
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seal sign in state")
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: s.encryptionKey},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seal sign in state")
	}

	obj, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seal sign in state")
	}
	return obj.CompactSerialize()
}

func (s *StateSealer) decrypt(tokenString string) (string, error) {
	if len(s.encryptionKey) == 0 {
		return "", ErrMissingDependency
	}

	obj, err := jose.ParseEncryptedCompact(tokenString,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return "", err
	}

	plaintext, err := obj.Decrypt(s.encryptionKey)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Open validates tokenString and returns the carried state.
func (s *StateSealer) Open(tokenString string) (SealedState, error) {
	if tokenString == "" {
		return SealedState{}, ErrStateSealInvalid
	}

	signed, err := s.decrypt(tokenString)
	if err != nil {
		clone := ErrStateSealInvalid.Clone()
		clone.Source = err
		return SealedState{}, clone.WithMetadata(map[string]any{"expired": false})
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}
	if len(s.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(s.audience...))
	}

	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("state sealer encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, parserOptions...)
	if err != nil {
		clone := ErrStateSealInvalid.Clone()
		clone.Source = err
		return SealedState{}, clone.WithMetadata(map[string]any{
			"expired": goerrors.Is(err, jwt.ErrTokenExpired),
		})
	}
	if !token.Valid {
		return SealedState{}, ErrStateSealInvalid
	}

	sealed := SealedState{To: claims.To, State: claims.State}
	if claims.ExpiresAt != nil {
		sealed.ExpiresAt = claims.ExpiresAt.Time
	}
	return sealed, nil
}
