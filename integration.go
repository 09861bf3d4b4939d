package signin

import "strings"

// IntegrationType identifies who started the sign in.
type IntegrationType string

const (
	IntegrationWeb               IntegrationType = "Web"
	IntegrationOAuth             IntegrationType = "OAuth"
	IntegrationSyncDesktop       IntegrationType = "SyncDesktop"
	IntegrationPairingAuthority  IntegrationType = "PairingAuthority"
	IntegrationPairingSupplicant IntegrationType = "PairingSupplicant"
)

// acrValueAAL2 asks the relying party for two step authentication.
const acrValueAAL2 = "AAL2"

// Integration describes the flavor of the current sign in.
type Integration interface {
	Type() IntegrationType
	IsOAuth() bool
	IsSync() bool
	WantsTwoStepAuthentication() bool
}

// WebIntegration is a direct web sign in.
type WebIntegration struct{}

func (WebIntegration) Type() IntegrationType {
	return IntegrationWeb
}

func (WebIntegration) IsOAuth() bool {
	return false
}

func (WebIntegration) IsSync() bool {
	return false
}

func (WebIntegration) WantsTwoStepAuthentication() bool {
	return false
}

// PairingAuthorityIntegration is the device that approves a pairing request.
type PairingAuthorityIntegration struct{}

func (PairingAuthorityIntegration) Type() IntegrationType {
	return IntegrationPairingAuthority
}

func (PairingAuthorityIntegration) IsOAuth() bool {
	return false
}

func (PairingAuthorityIntegration) IsSync() bool {
	return false
}

func (PairingAuthorityIntegration) WantsTwoStepAuthentication() bool {
	return false
}

// OAuthIntegration is a sign in started by a relying party.
type OAuthIntegration struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	State       string `json:"state"`
	AcrValues   string `json:"acr_values"`
	Sync        bool   `json:"sync"`
}

func (i *OAuthIntegration) Type() IntegrationType {
	if i != nil && i.Sync {
		return IntegrationSyncDesktop
	}
	return IntegrationOAuth
}

func (i *OAuthIntegration) IsOAuth() bool { return i != nil }

func (i *OAuthIntegration) IsSync() bool { return i != nil && i.Sync }

// WantsTwoStepAuthentication reports whether acr_values request AAL2.
func (i *OAuthIntegration) WantsTwoStepAuthentication() bool {
	if i == nil {
		return false
	}
	for _, value := range strings.Fields(strings.ReplaceAll(i.AcrValues, ",", " ")) {
		if strings.EqualFold(value, acrValueAAL2) {
			return true
		}
	}
	return false
}

func isOAuthIntegration(integration Integration) bool {
	return integration != nil && integration.IsOAuth()
}
