package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultStateTTLSeconds      = 600
	DefaultCredentialTTLSeconds = 600
	DefaultPageSize             = 10
	DefaultPageDelayMillis      = 100
)

type OAuthConfig struct {
	StateTTLSeconds      int    `koanf:"state_ttl_seconds" mapstructure:"state_ttl_seconds"`
	CredentialTTLSeconds int    `koanf:"credential_ttl_seconds" mapstructure:"credential_ttl_seconds"`
	KeyNamespace         string `koanf:"key_namespace" mapstructure:"key_namespace"`
}

func (c OAuthConfig) StateTTL() time.Duration {
	return time.Duration(c.StateTTLSeconds) * time.Second
}

func (c OAuthConfig) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLSeconds) * time.Second
}

type ProviderConfig struct {
	ID           string   `koanf:"id" mapstructure:"id"`
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
	AuthURL      string   `koanf:"auth_url" mapstructure:"auth_url"`
	TokenURL     string   `koanf:"token_url" mapstructure:"token_url"`
	APIBaseURL   string   `koanf:"api_base_url" mapstructure:"api_base_url"`
}

type EndpointConfig struct {
	Name        string   `koanf:"name" mapstructure:"name"`
	Path        string   `koanf:"path" mapstructure:"path"`
	ObjectTypes []string `koanf:"object_types" mapstructure:"object_types"`
	Properties  []string `koanf:"properties" mapstructure:"properties"`
}

func (c EndpointConfig) Mapping() EndpointMapping {
	return EndpointMapping{
		Name:         strings.TrimSpace(c.Name),
		EndpointPath: strings.TrimSpace(c.Path),
		ObjectTypes:  NewObjectTypes(c.ObjectTypes...),
		Properties:   append([]string(nil), c.Properties...),
	}
}

type FetchConfig struct {
	PageSize         int              `koanf:"page_size" mapstructure:"page_size"`
	PageDelayMillis  int              `koanf:"page_delay_ms" mapstructure:"page_delay_ms"`
	Worklist         []string         `koanf:"worklist" mapstructure:"worklist"`
	KeepPartialPages bool             `koanf:"keep_partial_pages" mapstructure:"keep_partial_pages"`
	Endpoints        []EndpointConfig `koanf:"endpoints" mapstructure:"endpoints"`
}

func (c FetchConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMillis) * time.Millisecond
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig    `koanf:"oauth" mapstructure:"oauth"`
	Provider    ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Fetch       FetchConfig    `koanf:"fetch" mapstructure:"fetch"`
}

// DefaultConfig carries provider-neutral defaults. Provider packages layer
// their own endpoints and URLs on top.
func DefaultConfig() Config {
	return Config{
		ServiceName: "crmitems",
		OAuth: OAuthConfig{
			StateTTLSeconds:      DefaultStateTTLSeconds,
			CredentialTTLSeconds: DefaultCredentialTTLSeconds,
		},
		Fetch: FetchConfig{
			PageSize:        DefaultPageSize,
			PageDelayMillis: DefaultPageDelayMillis,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuth.StateTTLSeconds <= 0 {
		return fmt.Errorf("core: oauth.state_ttl_seconds must be positive")
	}
	if c.OAuth.CredentialTTLSeconds <= 0 {
		return fmt.Errorf("core: oauth.credential_ttl_seconds must be positive")
	}
	if c.Fetch.PageSize <= 0 {
		return fmt.Errorf("core: fetch.page_size must be positive")
	}
	if c.Fetch.PageDelayMillis < 0 {
		return fmt.Errorf("core: fetch.page_delay_ms must not be negative")
	}
	for _, raw := range []struct {
		field string
		value string
	}{
		{field: "provider.auth_url", value: c.Provider.AuthURL},
		{field: "provider.token_url", value: c.Provider.TokenURL},
		{field: "provider.api_base_url", value: c.Provider.APIBaseURL},
		{field: "provider.redirect_uri", value: c.Provider.RedirectURI},
	} {
		if strings.TrimSpace(raw.value) == "" {
			continue
		}
		parsed, err := url.Parse(strings.TrimSpace(raw.value))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: %s must be an absolute url", raw.field)
		}
	}
	seen := map[string]struct{}{}
	for idx, endpoint := range c.Fetch.Endpoints {
		name := strings.TrimSpace(endpoint.Name)
		if name == "" {
			return fmt.Errorf("core: fetch.endpoints[%d].name is required", idx)
		}
		if strings.TrimSpace(endpoint.Path) == "" {
			return fmt.Errorf("core: fetch.endpoints[%d].path is required", idx)
		}
		if len(NewObjectTypes(endpoint.ObjectTypes...)) == 0 {
			return fmt.Errorf("core: fetch.endpoints[%d].object_types is required", idx)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("core: fetch.endpoints[%d].name %q is duplicated", idx, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// EndpointTable is the immutable collection name to endpoint mapping.
type EndpointTable struct {
	byName map[string]EndpointMapping
	order  []string
}

// NewEndpointTable builds a table from base entries; later entries replace
// earlier ones with the same name.
func NewEndpointTable(entries ...EndpointMapping) EndpointTable {
	table := EndpointTable{byName: map[string]EndpointMapping{}}
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" || len(entry.ObjectTypes) == 0 {
			continue
		}
		entry.Name = name
		entry.ObjectTypes = append(ObjectTypes(nil), entry.ObjectTypes...)
		entry.Properties = append([]string(nil), entry.Properties...)
		if _, exists := table.byName[name]; !exists {
			table.order = append(table.order, name)
		}
		table.byName[name] = entry
	}
	return table
}

// With returns a new table with overrides applied.
func (t EndpointTable) With(overrides ...EndpointMapping) EndpointTable {
	entries := make([]EndpointMapping, 0, len(t.order)+len(overrides))
	for _, name := range t.order {
		entries = append(entries, t.byName[name])
	}
	entries = append(entries, overrides...)
	return NewEndpointTable(entries...)
}

func (t EndpointTable) Lookup(name string) (EndpointMapping, bool) {
	entry, ok := t.byName[strings.TrimSpace(name)]
	if !ok {
		return EndpointMapping{}, false
	}
	entry.ObjectTypes = append(ObjectTypes(nil), entry.ObjectTypes...)
	entry.Properties = append([]string(nil), entry.Properties...)
	return entry, true
}

func (t EndpointTable) Names() []string {
	return append([]string(nil), t.order...)
}

func (t EndpointTable) Len() int {
	return len(t.order)
}
