package crmitems

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/providers/hubspot"
)

type fakeHubSpot struct {
	server *httptest.Server

	mu          gosync.Mutex
	tokenForms  []url.Values
	tokenInfoCt int
}

func newFakeHubSpot(t *testing.T) *fakeHubSpot {
	t.Helper()
	fake := &fakeHubSpot{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		fake.mu.Lock()
		fake.tokenForms = append(fake.tokenForms, r.PostForm)
		fake.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at_1","refresh_token":"rt_1","expires_in":1800,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/oauth/v1/access-tokens/", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		fake.tokenInfoCt++
		fake.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hub_id":42,"hub_domain":"demo.hubspot.com","user":"ops@example.com","scopes":["oauth"]}`))
	})
	mux.HandleFunc("/crm/v3/objects/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at_1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			_, _ = w.Write([]byte(`{"results":[{"id":"101","properties":{"firstname":"Ada","lastname":"Lovelace"},"createdAt":"2026-01-02T03:04:05Z","updatedAt":"2026-01-03T03:04:05Z"}],"paging":{"next":{"after":"p2"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"102","properties":{"email":"grace@example.com"}}]}`))
	})
	mux.HandleFunc("/crm/v3/objects/deals", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error"}`))
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeHubSpot) config() Config {
	cfg := Config{}
	cfg.Provider = core.ProviderConfig{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		RedirectURI:  "https://app.example.com/integrations/hubspot/oauth2callback",
		AuthURL:      f.server.URL + "/oauth/authorize",
		TokenURL:     f.server.URL + "/oauth/v1/token",
		APIBaseURL:   f.server.URL,
	}
	cfg.Fetch.Worklist = []string{"contacts", "deals", "widgets"}
	cfg.Fetch.PageDelayMillis = 1
	return cfg
}

func TestHubSpotService_AuthorizeCallbackConsumeCollect(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHubSpot(t)
	runs := &memoryRunStore{}

	svc, err := NewHubSpotService(ctx, fake.config(), HubSpotDependencies{
		HTTPClient:         fake.server.Client(),
		CollectionRunStore: runs,
		TokenInfoCacheTTL:  time.Minute,
	}, WithNonceSource(func() (string, error) { return "nonce_1", nil }))
	if err != nil {
		t.Fatalf("new hubspot service: %v", err)
	}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	authURL, err := svc.Authorize(ctx, "usr_1", "org_1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if !strings.HasPrefix(authURL, fake.server.URL+"/oauth/authorize?") {
		t.Fatalf("unexpected auth url %q", authURL)
	}
	if parsed.Query().Get("client_id") != "client_1" {
		t.Fatalf("expected client id in auth url, got %q", parsed.Query().Get("client_id"))
	}
	state := parsed.Query().Get("state")
	if !strings.Contains(state, `"state":"nonce_1"`) {
		t.Fatalf("expected nonce in state, got %q", state)
	}

	callbackURL := "/integrations/hubspot/oauth2callback?" + url.Values{"code": {"code_1"}, "state": {state}}.Encode()
	rec := httptest.NewRecorder()
	facade.CallbackHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected callback 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "window.close()") {
		t.Fatalf("expected close-window page, got %q", rec.Body.String())
	}

	fake.mu.Lock()
	if len(fake.tokenForms) != 1 {
		fake.mu.Unlock()
		t.Fatalf("expected one token exchange, got %d", len(fake.tokenForms))
	}
	form := fake.tokenForms[0]
	fake.mu.Unlock()
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "code_1" {
		t.Fatalf("unexpected token form %v", form)
	}
	if form.Get("client_secret") != "secret_1" {
		t.Fatalf("expected client secret in form body")
	}

	// replaying the callback finds no state
	rec = httptest.NewRecorder()
	facade.CallbackHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackURL, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected replayed callback 400, got %d", rec.Code)
	}

	cred, err := svc.ConsumeCredentials(ctx, "usr_1", "org_1")
	if err != nil {
		t.Fatalf("consume credentials: %v", err)
	}
	if cred.AccessToken != "at_1" || cred.RefreshToken != "rt_1" {
		t.Fatalf("unexpected credential %#v", cred)
	}
	if _, err := svc.ConsumeCredentials(ctx, "usr_1", "org_1"); !errors.Is(err, core.ErrNoCredential) {
		t.Fatalf("expected second consume to fail with no credential, got %v", err)
	}

	result, err := svc.CollectItems(ctx, cred)
	if err != nil {
		t.Fatalf("collect items: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(result.Items))
	}
	first := result.Items[0]
	if first.Type != "contact" || first.Name == nil || *first.Name != "Ada Lovelace" {
		t.Fatalf("unexpected first item %#v", first)
	}
	if first.URL == nil || *first.URL != fake.server.URL+"/crm/v3/objects/contacts/101" {
		t.Fatalf("unexpected item url %v", first.URL)
	}
	if second := result.Items[1]; second.Name == nil || *second.Name != "grace@example.com" {
		t.Fatalf("expected email fallback name, got %#v", second)
	}

	statuses := map[string]core.CollectionStatusKind{}
	for _, status := range result.Collections {
		statuses[status.Collection] = status.Status
	}
	if statuses["contacts"] != core.CollectionStatusSucceeded ||
		statuses["deals"] != core.CollectionStatusFailed ||
		statuses["widgets"] != core.CollectionStatusSkipped {
		t.Fatalf("unexpected collection statuses %#v", statuses)
	}
	if result.Account == nil || result.Account.HubID != 42 {
		t.Fatalf("expected account info, got %#v", result.Account)
	}

	if len(runs.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs.runs))
	}
	if runs.runs[0].Status != core.CollectionRunPartial || runs.runs[0].OrgID != "org_1" {
		t.Fatalf("unexpected recorded run %#v", runs.runs[0])
	}

	page, err := svc.ListCollectionRuns(ctx, core.CollectionRunFilter{OrgID: "org_1"})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one run listed, got %d", page.Total)
	}
}

func TestHubSpotService_AppliesHubSpotDefaults(t *testing.T) {
	svc, err := NewHubSpotService(context.Background(), Config{}, HubSpotDependencies{})
	if err != nil {
		t.Fatalf("new hubspot service: %v", err)
	}
	cfg := svc.Config()
	if cfg.Provider.ID != hubspot.ProviderID {
		t.Fatalf("expected hubspot provider id, got %q", cfg.Provider.ID)
	}
	if cfg.Provider.AuthURL != hubspot.AuthURL || cfg.Provider.TokenURL != hubspot.TokenURL {
		t.Fatalf("expected hubspot urls, got %q %q", cfg.Provider.AuthURL, cfg.Provider.TokenURL)
	}
	if len(cfg.Fetch.Worklist) != len(hubspot.DefaultWorklist()) {
		t.Fatalf("expected default worklist, got %v", cfg.Fetch.Worklist)
	}
	if cfg.OAuth.StateTTLSeconds != 600 || cfg.OAuth.CredentialTTLSeconds != 600 {
		t.Fatalf("expected 600s ttls, got %d %d", cfg.OAuth.StateTTLSeconds, cfg.OAuth.CredentialTTLSeconds)
	}
	if got := svc.Keys().StateKey("org_1", "usr_1"); got != "state:org_1:usr_1" {
		t.Fatalf("unexpected state key %q", got)
	}
	if got := svc.Keys().CredentialKey("org_1", "usr_1"); got != "credentials:org_1:usr_1" {
		t.Fatalf("unexpected credential key %q", got)
	}
}

func TestHubSpotService_RejectsInvalidConfig(t *testing.T) {
	cfg := Config{}
	cfg.Provider.TokenURL = "not-a-url"
	if _, err := NewHubSpotService(context.Background(), cfg, HubSpotDependencies{}); err == nil {
		t.Fatalf("expected invalid token url error")
	}
}

func TestHubSpotProvider_BuildsAuthorizationClient(t *testing.T) {
	provider, err := HubSpotProvider(hubspot.Config{ClientID: "client_1"})
	if err != nil {
		t.Fatalf("hubspot provider: %v", err)
	}
	if provider.ID() != hubspot.ProviderID {
		t.Fatalf("expected provider id %q, got %q", hubspot.ProviderID, provider.ID())
	}
	authURL, err := provider.AuthorizationURL("st")
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	if !strings.HasPrefix(authURL, hubspot.AuthURL+"?") {
		t.Fatalf("unexpected auth url %q", authURL)
	}
}

type memoryRunStore struct {
	mu   gosync.Mutex
	runs []core.CollectionRun
}

func (s *memoryRunStore) Record(_ context.Context, run core.CollectionRun) (core.CollectionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return run, nil
}

func (s *memoryRunStore) List(_ context.Context, filter core.CollectionRunFilter) (core.CollectionRunPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := core.CollectionRunPage{Page: filter.Page, PerPage: filter.PerPage}
	for _, run := range s.runs {
		if filter.OrgID != "" && run.OrgID != filter.OrgID {
			continue
		}
		page.Items = append(page.Items, run)
	}
	page.Total = len(page.Items)
	return page, nil
}
