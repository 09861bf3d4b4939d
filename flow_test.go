package signin_test

import (
	"context"
	"testing"
	"time"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func graphQLFailure(errno int) error {
	return &payloadError{payload: *payloadWith(map[string]any{"errno": float64(errno)})}
}

func TestFlowSigninWithPasswordSettled(t *testing.T) {
	ctx := context.Background()
	auth := new(MockAuthenticator)
	auth.On("BeginSignin", mock.Anything, "user@example.com", "secret").Return(signin.SigninResult{
		UID:          "uid-1",
		SessionToken: "session-1",
		Verified:     true,
	}, nil)

	sink := &capturingSink{}
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	flow := signin.NewFlow(auth,
		signin.WithFlowActivitySink(sink),
		signin.WithFlowClock(func() time.Time { return now }),
	)

	outcome, err := flow.SigninWithPassword(ctx, signin.PasswordSigninRequest{
		Email:       " user@example.com ",
		Password:    "secret",
		Integration: signin.WebIntegration{},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Target)
	assert.Nil(t, outcome.Error)
	assert.Equal(t, "/settings", outcome.Target.To)

	stored, err := flow.Storage().Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", stored.UID)
	assert.Equal(t, "user@example.com", stored.Email)
	assert.Equal(t, "session-1", stored.SessionToken)
	assert.True(t, stored.SessionVerified)
	assert.Equal(t, now, stored.LastLogin)
	require.NotNil(t, stored.VerifiedAt)

	assert.Len(t, sink.ofType(signin.ActivityEventSigninSuccess), 1)
	assert.Len(t, sink.ofType(signin.ActivityEventNavigation), 1)
	auth.AssertExpectations(t)
}

func TestFlowSigninWithPasswordValidation(t *testing.T) {
	auth := new(MockAuthenticator)
	flow := signin.NewFlow(auth)

	_, err := flow.SigninWithPassword(context.Background(), signin.PasswordSigninRequest{
		Email:    "not-an-email",
		Password: "",
	})

	require.Error(t, err)
	assert.True(t, signin.IsInvalidSigninRequest(err))
	auth.AssertNotCalled(t, "BeginSignin", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowSigninWithPasswordFailures(t *testing.T) {
	tests := []struct {
		name       string
		errno      int
		expectTo   string
		expectErr  int
		withTarget bool
	}{
		{name: "totp required", errno: signin.ErrnoTOTPRequired, expectTo: "/inline_totp_setup?service=sync", withTarget: true},
		{name: "insufficient acr", errno: signin.ErrnoInsufficientACRValues, expectTo: "/inline_totp_setup?service=sync", withTarget: true},
		{name: "hard bounce", errno: signin.ErrnoEmailHardBounce, expectTo: "/signin_bounced?bouncedEmail=user%40example.com&service=sync", withTarget: true},
		{name: "incorrect password", errno: signin.ErrnoIncorrectPassword, expectErr: signin.ErrnoIncorrectPassword},
		{name: "unknown errno", errno: 99999, expectErr: signin.ErrnoUnexpectedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(MockAuthenticator)
			auth.On("BeginSignin", mock.Anything, "user@example.com", "secret").
				Return(signin.SigninResult{}, graphQLFailure(tt.errno))

			sink := &capturingSink{}
			flow := signin.NewFlow(auth, signin.WithFlowActivitySink(sink))

			outcome, err := flow.SigninWithPassword(context.Background(), signin.PasswordSigninRequest{
				Email:       "user@example.com",
				Password:    "secret",
				Integration: signin.WebIntegration{},
				QueryParams: "service=sync",
			})
			require.NoError(t, err)
			failures := sink.ofType(signin.ActivityEventSigninFailure)
			require.Len(t, failures, 1)
			assert.NotContains(t, failures[0].Metadata, "email")
			assert.NotEmpty(t, failures[0].Metadata[signin.MetadataKeyEmailDigest])
			assert.Equal(t, signin.EmailDigest("user@example.com"), failures[0].Metadata[signin.MetadataKeyEmailDigest])
			for _, value := range failures[0].Metadata {
				assert.NotEqual(t, "user@example.com", value)
			}

			if tt.withTarget {
				require.NotNil(t, outcome.Target)
				assert.Nil(t, outcome.Error)
				assert.Equal(t, tt.expectTo, outcome.Target.To)
				assert.Equal(t, "user@example.com", outcome.Target.State.Email)
				return
			}

			assert.Nil(t, outcome.Target)
			require.NotNil(t, outcome.Error)
			assert.Equal(t, tt.expectErr, outcome.Error.Errno)

			_, err = flow.Storage().Current(context.Background())
			assert.True(t, signin.IsAccountNotFound(err))
		})
	}
}

func TestFlowSigninWithPasswordOAuth(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("BeginSignin", mock.Anything, "user@example.com", "secret").Return(signin.SigninResult{
		UID:          "uid-1",
		SessionToken: "session-1",
		UnwrapBKey:   "ubk",
		Verified:     true,
	}, nil)

	issuer := new(MockCodeIssuer)
	issuer.On("IssueAuthorizationCode", mock.Anything, mock.MatchedBy(func(req signin.OAuthCodeRequest) bool {
		return req.ClientID == "client" && req.SessionToken == "session-1" && req.UnwrapBKey == "ubk"
	})).Return(signin.OAuthResult{AuthorizationCode: "code-1"}, nil)

	flow := signin.NewFlow(auth, signin.WithFlowCodeIssuer(issuer))

	outcome, err := flow.SigninWithPassword(context.Background(), signin.PasswordSigninRequest{
		Email:    "user@example.com",
		Password: "secret",
		Integration: &signin.OAuthIntegration{
			ClientID:    "client",
			RedirectURI: "https://rp.example/cb",
			State:       "xyz",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Target)
	assert.True(t, outcome.Target.HardNavigate)
	assert.Equal(t, "https://rp.example/cb?code=code-1&state=xyz", outcome.Target.To)
	issuer.AssertExpectations(t)
}

func TestFlowSigninWithPasswordOAuthFailure(t *testing.T) {
	auth := new(MockAuthenticator)
	auth.On("BeginSignin", mock.Anything, mock.Anything, mock.Anything).Return(signin.SigninResult{
		UID:      "uid-1",
		Verified: true,
	}, nil)

	flow := signin.NewFlow(auth)

	outcome, err := flow.SigninWithPassword(context.Background(), signin.PasswordSigninRequest{
		Email:       "user@example.com",
		Password:    "secret",
		Integration: &signin.OAuthIntegration{ClientID: "client"},
	})
	require.NoError(t, err)
	assert.Nil(t, outcome.Target)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, signin.ErrnoOAuthDataError, outcome.Error.Errno)
}

func TestFlowSigninWithCachedSession(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()
	require.NoError(t, storage.Set(ctx, signin.StoredAccount{UID: "uid-1", Email: "user@example.com", SessionToken: "cached"}))
	require.NoError(t, storage.SetCurrent(ctx, "uid-1"))

	auth := new(MockAuthenticator)
	auth.On("BeginCachedSignin", mock.Anything, "cached").Return(signin.SigninResult{
		UID:                "uid-1",
		VerificationMethod: signin.VerificationMethodEmailOTP,
		VerificationReason: signin.VerificationReasonSignIn,
	}, nil)

	sink := &capturingSink{}
	flow := signin.NewFlow(auth, signin.WithFlowStorage(storage), signin.WithFlowActivitySink(sink))

	outcome, err := flow.SigninWithCachedSession(ctx, signin.CachedSigninRequest{Integration: signin.WebIntegration{}})
	require.NoError(t, err)
	require.NotNil(t, outcome.Target)
	assert.Equal(t, "/signin_token_code", outcome.Target.To)
	assert.Equal(t, "user@example.com", outcome.Target.State.Email)
	assert.Len(t, sink.ofType(signin.ActivityEventCachedSignin), 1)
	auth.AssertExpectations(t)
}

func TestFlowSigninWithCachedSessionExpired(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()
	require.NoError(t, storage.Set(ctx, signin.StoredAccount{UID: "uid-1", Email: "user@example.com", SessionToken: "stale", SessionVerified: true}))
	require.NoError(t, storage.SetCurrent(ctx, "uid-1"))

	auth := new(MockAuthenticator)
	auth.On("BeginCachedSignin", mock.Anything, "stale").Return(signin.SigninResult{}, graphQLFailure(signin.ErrnoInvalidToken))

	sink := &capturingSink{}
	flow := signin.NewFlow(auth, signin.WithFlowStorage(storage), signin.WithFlowActivitySink(sink))

	outcome, err := flow.SigninWithCachedSession(ctx, signin.CachedSigninRequest{UID: "uid-1"})
	require.NoError(t, err)
	assert.True(t, outcome.PasswordRequired)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, signin.ErrnoSessionExpired, outcome.Error.Errno)

	stored, err := storage.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, stored.SessionToken)
	assert.False(t, stored.SessionVerified)
	assert.Equal(t, "user@example.com", stored.Email)
	assert.Len(t, sink.ofType(signin.ActivityEventAccountCleared), 1)
}

func TestFlowSigninWithCachedSessionWithoutAccount(t *testing.T) {
	auth := new(MockAuthenticator)
	flow := signin.NewFlow(auth)

	outcome, err := flow.SigninWithCachedSession(context.Background(), signin.CachedSigninRequest{})
	require.NoError(t, err)
	assert.True(t, outcome.PasswordRequired)
	assert.Nil(t, outcome.Error)
	auth.AssertNotCalled(t, "BeginCachedSignin", mock.Anything, mock.Anything)
}

func TestFlowMissingAuthenticator(t *testing.T) {
	flow := signin.NewFlow(nil)

	_, err := flow.SigninWithPassword(context.Background(), signin.PasswordSigninRequest{Email: "user@example.com", Password: "x"})
	assert.ErrorIs(t, err, signin.ErrMissingDependency)

	_, err = flow.SigninWithCachedSession(context.Background(), signin.CachedSigninRequest{})
	assert.ErrorIs(t, err, signin.ErrMissingDependency)
}

func TestResolveSignupAccount(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()

	account, redirect := signin.ResolveSignupAccount(ctx, &signin.LocationState{
		Email:        "new@example.com",
		UID:          "uid-9",
		SessionToken: "session",
		UnwrapBKey:   "ubk",
	}, storage, "https://accounts.example")
	assert.Nil(t, redirect)
	assert.Equal(t, "uid-9", account.UID)
	assert.Equal(t, "ubk", account.UnwrapBKey)

	require.NoError(t, storage.Set(ctx, signin.StoredAccount{UID: "uid-10", Email: "stored@example.com", SessionToken: "stored-session"}))
	require.NoError(t, storage.SetCurrent(ctx, "uid-10"))
	account, redirect = signin.ResolveSignupAccount(ctx, nil, storage, "https://accounts.example")
	assert.Nil(t, redirect)
	assert.Equal(t, "stored@example.com", account.Email)
	assert.Equal(t, "stored-session", account.SessionToken)

	_, redirect = signin.ResolveSignupAccount(ctx, nil, signin.NewMemoryAccountStorage(), "https://accounts.example/")
	require.NotNil(t, redirect)
	assert.Equal(t, "https://accounts.example/", redirect.To)
	assert.True(t, redirect.HardNavigate)
}
