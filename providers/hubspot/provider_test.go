package hubspot

import (
	"net/url"
	"testing"

	"github.com/goliatone/go-crm-items/core"
)

func TestDefaultConfig_IsValidAndCarriesHubSpotDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	if cfg.Provider.ID != ProviderID || cfg.Provider.APIBaseURL != APIBaseURL {
		t.Fatalf("unexpected provider defaults %+v", cfg.Provider)
	}
	if cfg.OAuth.StateTTLSeconds != 600 || cfg.OAuth.CredentialTTLSeconds != 600 {
		t.Fatalf("expected 600s ttls, got %+v", cfg.OAuth)
	}
	if cfg.OAuth.KeyNamespace != "" {
		t.Fatalf("expected unprefixed store keys, got namespace %q", cfg.OAuth.KeyNamespace)
	}
	if len(cfg.Fetch.Worklist) != 4 || cfg.Fetch.Worklist[0] != "companies" || cfg.Fetch.Worklist[3] != "tickets" {
		t.Fatalf("unexpected worklist %v", cfg.Fetch.Worklist)
	}
	if cfg.Fetch.PageSize != 10 || cfg.Fetch.PageDelayMillis != 100 {
		t.Fatalf("unexpected fetch defaults %+v", cfg.Fetch)
	}
}

func TestApplyDefaults_KeepsConfiguredValues(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Provider.ClientID = "cid"
	cfg.Provider.APIBaseURL = "https://api.example.test"
	cfg.Fetch.Worklist = []string{"deals"}

	applied := ApplyDefaults(cfg)
	if applied.Provider.ClientID != "cid" {
		t.Fatalf("expected client id preserved")
	}
	if applied.Provider.APIBaseURL != "https://api.example.test" {
		t.Fatalf("expected api base url preserved, got %q", applied.Provider.APIBaseURL)
	}
	if applied.Provider.TokenURL != TokenURL || applied.Provider.AuthURL != AuthURL {
		t.Fatalf("expected hubspot oauth urls filled in")
	}
	if len(applied.Fetch.Worklist) != 1 || applied.Fetch.Worklist[0] != "deals" {
		t.Fatalf("expected configured worklist preserved, got %v", applied.Fetch.Worklist)
	}
}

func TestNew_BuildsAuthorizationURL(t *testing.T) {
	client, err := New(ConfigFromProvider(core.ProviderConfig{ClientID: "cid", ClientSecret: "secret"}, nil))
	if err != nil {
		t.Fatalf("new hubspot client: %v", err)
	}
	if client.ID() != ProviderID {
		t.Fatalf("expected %q id, got %q", ProviderID, client.ID())
	}
	authURL, err := client.AuthorizationURL(`{"state":"n"}`)
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Host != "app.hubspot.com" || parsed.Path != "/oauth/authorize" {
		t.Fatalf("unexpected authorization endpoint %s", authURL)
	}
	query := parsed.Query()
	if query.Get("scope") != "oauth crm.objects.companies.read crm.objects.contacts.read crm.objects.deals.read tickets" {
		t.Fatalf("unexpected scope %q", query.Get("scope"))
	}
	if query.Get("redirect_uri") != DefaultRedirectURI {
		t.Fatalf("unexpected redirect uri %q", query.Get("redirect_uri"))
	}
}

func TestNew_RequiresClientID(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing client id error")
	}
}
