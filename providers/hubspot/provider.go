package hubspot

import (
	"strings"

	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/providers"
)

const (
	ProviderID         = "hubspot"
	AuthURL            = "https://app.hubspot.com/oauth/authorize"
	TokenURL           = "https://api.hubapi.com/oauth/v1/token"
	APIBaseURL         = "https://api.hubapi.com"
	DefaultRedirectURI = "http://localhost:8000/integrations/hubspot/oauth2callback"
)

const (
	ScopeOAuth         = "oauth"
	ScopeCompaniesRead = "crm.objects.companies.read"
	ScopeContactsRead  = "crm.objects.contacts.read"
	ScopeDealsRead     = "crm.objects.deals.read"
	ScopeTickets       = "tickets"
)

func DefaultScopes() []string {
	return []string{ScopeOAuth, ScopeCompaniesRead, ScopeContactsRead, ScopeDealsRead, ScopeTickets}
}

// DefaultWorklist is the ordered set of collections fetched when the
// configuration does not name one.
func DefaultWorklist() []string {
	return []string{"companies", "contacts", "deals", "tickets"}
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	HTTPClient   providers.HTTPDoer
}

// DefaultConfig returns service configuration with HubSpot URLs, scopes and
// worklist applied over the provider-neutral defaults.
func DefaultConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Provider = core.ProviderConfig{
		ID:          ProviderID,
		RedirectURI: DefaultRedirectURI,
		Scopes:      DefaultScopes(),
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		APIBaseURL:  APIBaseURL,
	}
	cfg.Fetch.Worklist = DefaultWorklist()
	return cfg
}

// ApplyDefaults fills unset provider and fetch fields of cfg.
func ApplyDefaults(cfg core.Config) core.Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Provider.ID) == "" {
		cfg.Provider.ID = defaults.Provider.ID
	}
	if strings.TrimSpace(cfg.Provider.RedirectURI) == "" {
		cfg.Provider.RedirectURI = defaults.Provider.RedirectURI
	}
	if len(cfg.Provider.Scopes) == 0 {
		cfg.Provider.Scopes = defaults.Provider.Scopes
	}
	if strings.TrimSpace(cfg.Provider.AuthURL) == "" {
		cfg.Provider.AuthURL = defaults.Provider.AuthURL
	}
	if strings.TrimSpace(cfg.Provider.TokenURL) == "" {
		cfg.Provider.TokenURL = defaults.Provider.TokenURL
	}
	if strings.TrimSpace(cfg.Provider.APIBaseURL) == "" {
		cfg.Provider.APIBaseURL = defaults.Provider.APIBaseURL
	}
	if len(cfg.Fetch.Worklist) == 0 {
		cfg.Fetch.Worklist = defaults.Fetch.Worklist
	}
	return cfg
}

// ConfigFromProvider converts the service provider section into a client
// configuration.
func ConfigFromProvider(provider core.ProviderConfig, httpClient providers.HTTPDoer) Config {
	return Config{
		ClientID:     provider.ClientID,
		ClientSecret: provider.ClientSecret,
		RedirectURI:  provider.RedirectURI,
		Scopes:       append([]string(nil), provider.Scopes...),
		AuthURL:      provider.AuthURL,
		TokenURL:     provider.TokenURL,
		HTTPClient:   httpClient,
	}
}

// New builds the authorization-code client. HubSpot expects the client
// secret as a form field on the token request.
func New(cfg Config) (*providers.OAuth2Client, error) {
	if cfg.AuthURL == "" {
		cfg.AuthURL = AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURL
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	return providers.NewOAuth2Client(providers.OAuth2Config{
		ID:                 ProviderID,
		AuthURL:            cfg.AuthURL,
		TokenURL:           cfg.TokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RedirectURI:        cfg.RedirectURI,
		Scopes:             cfg.Scopes,
		HTTPClient:         cfg.HTTPClient,
	})
}
