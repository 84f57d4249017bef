package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type testAuthProvider struct {
	id        string
	token     []byte
	err       error
	exchanges atomic.Int32
	lastCode  atomic.Value
}

func (p *testAuthProvider) ID() string { return p.id }

func (p *testAuthProvider) AuthorizationURL(state string) (string, error) {
	values := url.Values{}
	values.Set("client_id", "client_1")
	values.Set("redirect_uri", "https://app.example/callback")
	values.Set("scope", "oauth crm.objects.contacts.read")
	values.Set("state", state)
	return "https://auth.example/authorize?" + values.Encode(), nil
}

func (p *testAuthProvider) ExchangeCode(_ context.Context, code string) ([]byte, error) {
	p.exchanges.Add(1)
	p.lastCode.Store(code)
	if p.err != nil {
		return nil, p.err
	}
	return append([]byte(nil), p.token...), nil
}

func newTestAuthProvider() *testAuthProvider {
	return &testAuthProvider{
		id:    "hubspot",
		token: []byte(`{"access_token":"at_1","refresh_token":"rt_1","token_type":"bearer","expires_in":1800}`),
	}
}

type stubCollector struct {
	result CollectionResult
	err    error
	calls  int
	cred   Credential
}

func (c *stubCollector) Collect(_ context.Context, cred Credential) (CollectionResult, error) {
	c.calls++
	c.cred = cred
	if c.err != nil {
		return CollectionResult{}, c.err
	}
	return c.result, nil
}

type stubInspector struct {
	account AccountInfo
	err     error
}

func (i stubInspector) Inspect(context.Context, string) (AccountInfo, error) {
	if i.err != nil {
		return AccountInfo{}, i.err
	}
	return i.account, nil
}

type memoryRunStore struct {
	mu   sync.Mutex
	runs []CollectionRun
	err  error
}

func (s *memoryRunStore) Record(_ context.Context, run CollectionRun) (CollectionRun, error) {
	if s.err != nil {
		return CollectionRun{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return run, nil
}

func (s *memoryRunStore) List(_ context.Context, filter CollectionRunFilter) (CollectionRunPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []CollectionRun{}
	for _, run := range s.runs {
		if filter.OrgID != "" && run.OrgID != filter.OrgID {
			continue
		}
		items = append(items, run)
	}
	return CollectionRunPage{Items: items, Page: filter.Page, PerPage: filter.PerPage, Total: len(items)}, nil
}

// failingKVStore wraps a store and fails the named operations.
type failingKVStore struct {
	KVStore
	failDelete bool
	failSet    bool
}

func (s failingKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.failSet {
		return fmt.Errorf("kv unavailable")
	}
	return s.KVStore.Set(ctx, key, value, ttl)
}

func (s failingKVStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return fmt.Errorf("kv unavailable")
	}
	return s.KVStore.Delete(ctx, key)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func stateFromAuthURL(authURL string) string {
	parsed, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("state")
}

func callbackQuery(pairs ...string) CallbackRequest {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], pairs[i+1])
	}
	return CallbackRequest{Query: values}
}

func fixedNonce(value string) NonceSource {
	return func() (string, error) { return value, nil }
}

func containsAll(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
