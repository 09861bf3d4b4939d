package signin_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func TestStateSealerRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	sealer := signin.NewStateSealer(testSigningKey, "go-signin", []string{"go-signin"}, time.Minute,
		signin.WithStateSealerClock(func() time.Time { return now }),
	)

	state := &signin.LocationState{
		Email:              "user@example.com",
		VerificationReason: signin.VerificationReasonSignIn,
		OAuthResult:        &signin.OAuthResult{RedirectURL: "https://rp.example", AuthorizationCode: "c", State: "s"},
	}

	token, err := sealer.Seal("/signin_token_code", state)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(token, "."))

	sealed, err := sealer.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "/signin_token_code", sealed.To)
	assert.Equal(t, *state, sealed.State)
	assert.True(t, sealed.ExpiresAt.Equal(now.Add(time.Minute)))
	assert.Equal(t, time.Minute, sealer.TTL())
}

func TestStateSealerExpired(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sealer := signin.NewStateSealer(testSigningKey, "go-signin", nil, time.Minute, signin.WithStateSealerClock(clock))

	token, err := sealer.Seal("/settings", nil)
	require.NoError(t, err)

	later := signin.NewStateSealer(testSigningKey, "go-signin", nil, time.Minute,
		signin.WithStateSealerClock(func() time.Time { return now.Add(2 * time.Minute) }),
	)
	_, err = later.Open(token)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, signin.ErrStateSealInvalid.TextCode, richErr.TextCode)
	assert.Equal(t, true, richErr.Metadata["expired"])
}

func TestStateSealerRejectsTampering(t *testing.T) {
	sealer := signin.NewStateSealer(testSigningKey, "go-signin", []string{"go-signin"}, time.Minute)

	token, err := sealer.Seal("/settings", &signin.LocationState{Email: "user@example.com"})
	require.NoError(t, err)

	other := signin.NewStateSealer([]byte("ffffffffffffffffffffffffffffffff"), "go-signin", []string{"go-signin"}, time.Minute)
	_, err = other.Open(token)
	require.Error(t, err)

	wrongAudience := signin.NewStateSealer(testSigningKey, "go-signin", []string{"someone-else"}, time.Minute)
	_, err = wrongAudience.Open(token)
	require.Error(t, err)

	_, err = sealer.Open("")
	assert.ErrorIs(t, err, signin.ErrStateSealInvalid)

	_, err = sealer.Open("not.a.token")
	require.Error(t, err)
}

func TestStateSealerWithoutKey(t *testing.T) {
	sealer := signin.NewStateSealer(nil, "go-signin", nil, 0)
	assert.Equal(t, signin.DefaultStateTTL, sealer.TTL())

	_, err := sealer.Seal("/settings", nil)
	assert.ErrorIs(t, err, signin.ErrMissingDependency)
}

func TestStateSealerHidesCredentials(t *testing.T) {
	sealer := signin.NewStateSealer(testSigningKey, "go-signin", []string{"go-signin"}, time.Minute)
	state := &signin.LocationState{
		Email:         "user@example.com",
		SessionToken:  "session-token-secret",
		KeyFetchToken: "key-fetch-token-secret",
		UnwrapBKey:    "unwrap-b-key-secret",
		OAuthResult:   &signin.OAuthResult{AuthorizationCode: "oauth-code-secret"},
	}

	token, err := sealer.Seal("/confirm_signup_code", state)
	require.NoError(t, err)

	secrets := []string{"session-token-secret", "key-fetch-token-secret", "unwrap-b-key-secret", "oauth-code-secret", "user@example.com"}
	for _, segment := range strings.Split(token, ".") {
		decoded, err := base64.RawURLEncoding.DecodeString(segment)
		require.NoError(t, err)
		for _, secret := range secrets {
			assert.NotContains(t, segment, secret)
			assert.NotContains(t, string(decoded), secret)
		}
	}

	sealed, err := sealer.Open(token)
	require.NoError(t, err)
	assert.Equal(t, *state, sealed.State)
}
