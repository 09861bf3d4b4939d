package signin_test

import (
	"testing"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/assert"
)

func TestOAuthIntegrationWantsTwoStepAuthentication(t *testing.T) {
	tests := []struct {
		acr      string
		expected bool
	}{
		{acr: "", expected: false},
		{acr: "AAL1", expected: false},
		{acr: "AAL2", expected: true},
		{acr: "aal2", expected: true},
		{acr: "AAL1 AAL2", expected: true},
		{acr: "AAL1,AAL2", expected: true},
		{acr: "AAL22", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.acr, func(t *testing.T) {
			integration := &signin.OAuthIntegration{ClientID: "abc", AcrValues: tt.acr}
			assert.Equal(t, tt.expected, integration.WantsTwoStepAuthentication())
		})
	}
}

func TestIntegrationTypes(t *testing.T) {
	var nilOAuth *signin.OAuthIntegration
	assert.False(t, nilOAuth.IsOAuth())
	assert.False(t, nilOAuth.WantsTwoStepAuthentication())

	oauth := &signin.OAuthIntegration{ClientID: "abc"}
	assert.True(t, oauth.IsOAuth())
	assert.False(t, oauth.IsSync())
	assert.Equal(t, signin.IntegrationOAuth, oauth.Type())

	sync := &signin.OAuthIntegration{ClientID: "abc", Sync: true}
	assert.True(t, sync.IsSync())
	assert.Equal(t, signin.IntegrationSyncDesktop, sync.Type())

	assert.Equal(t, signin.IntegrationWeb, signin.WebIntegration{}.Type())
	assert.False(t, signin.WebIntegration{}.IsOAuth())
	assert.Equal(t, signin.IntegrationPairingAuthority, signin.PairingAuthorityIntegration{}.Type())
	assert.False(t, signin.PairingAuthorityIntegration{}.WantsTwoStepAuthentication())
}
