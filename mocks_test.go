package signin_test

import (
	"context"
	"sync"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/mock"
)

// MockAuthenticator implements signin.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) BeginSignin(ctx context.Context, email, password string) (signin.SigninResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(signin.SigninResult), args.Error(1)
}

func (m *MockAuthenticator) BeginCachedSignin(ctx context.Context, sessionToken string) (signin.SigninResult, error) {
	args := m.Called(ctx, sessionToken)
	return args.Get(0).(signin.SigninResult), args.Error(1)
}

// MockFinisher implements signin.OAuthFinisher
type MockFinisher struct {
	mock.Mock
}

func (m *MockFinisher) FinishOAuthFlow(ctx context.Context, uid, sessionToken, keyFetchToken, unwrapBKey string) (signin.OAuthResult, error) {
	args := m.Called(ctx, uid, sessionToken, keyFetchToken, unwrapBKey)
	return args.Get(0).(signin.OAuthResult), args.Error(1)
}

// MockNavigator implements signin.Navigator
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Navigate(ctx context.Context, to string, state *signin.LocationState) error {
	args := m.Called(ctx, to, state)
	return args.Error(0)
}

func (m *MockNavigator) HardNavigate(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}

// MockCodeIssuer implements signin.OAuthCodeIssuer
type MockCodeIssuer struct {
	mock.Mock
}

func (m *MockCodeIssuer) IssueAuthorizationCode(ctx context.Context, req signin.OAuthCodeRequest) (signin.OAuthResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(signin.OAuthResult), args.Error(1)
}

type capturingSink struct {
	mu     sync.Mutex
	events []signin.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt signin.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Events() []signin.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]signin.ActivityEvent(nil), c.events...)
}

func (c *capturingSink) ofType(eventType signin.ActivityEventType) []signin.ActivityEvent {
	var out []signin.ActivityEvent
	for _, evt := range c.Events() {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}
