package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// NonceSource produces the anti-forgery nonce for a new authorization.
type NonceSource func() (string, error)

type serviceBuilder struct {
	runtimeConfig      Config
	defaults           *Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	kvStore            KVStore
	authProvider       AuthorizationProvider
	itemCollector      ItemCollector
	tokenInspector     TokenInspector
	collectionRunStore CollectionRunStore
	nonceSource        NonceSource
	now                func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithDefaults replaces the base layer used during config resolution.
// Provider packages use it to contribute their URLs and endpoint tables.
func WithDefaults(defaults Config) Option {
	return func(b *serviceBuilder) {
		copied := defaults
		b.defaults = &copied
	}
}

func WithKVStore(store KVStore) Option {
	return func(b *serviceBuilder) {
		b.kvStore = store
	}
}

func WithAuthorizationProvider(provider AuthorizationProvider) Option {
	return func(b *serviceBuilder) {
		b.authProvider = provider
	}
}

func WithItemCollector(collector ItemCollector) Option {
	return func(b *serviceBuilder) {
		b.itemCollector = collector
	}
}

func WithTokenInspector(inspector TokenInspector) Option {
	return func(b *serviceBuilder) {
		b.tokenInspector = inspector
	}
}

func WithCollectionRunStore(store CollectionRunStore) Option {
	return func(b *serviceBuilder) {
		b.collectionRunStore = store
	}
}

func WithNonceSource(source NonceSource) Option {
	return func(b *serviceBuilder) {
		b.nonceSource = source
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("crmitems", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		nonceSource:     GenerateNonce,
		now:             time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

// MapError converts any error into the service error envelope.
func MapError(err error) *goerrors.Error {
	return defaultErrorMapper(err)
}

// ResolveConfig runs the same load and layering used by NewService so callers
// can build adapters from the final configuration before constructing it.
func ResolveConfig(ctx context.Context, defaults Config, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

// NewStaticConfigLoader serves a fixed raw map, mostly for tests and
// embedded configuration.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a layer. Zero values are left out unless
// includeZero is set so that sparse layers do not mask lower ones.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	oauth := map[string]any{}
	if includeZero || cfg.OAuth.StateTTLSeconds != 0 {
		oauth["state_ttl_seconds"] = cfg.OAuth.StateTTLSeconds
	}
	if includeZero || cfg.OAuth.CredentialTTLSeconds != 0 {
		oauth["credential_ttl_seconds"] = cfg.OAuth.CredentialTTLSeconds
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.KeyNamespace) != "" {
		oauth["key_namespace"] = cfg.OAuth.KeyNamespace
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}

	provider := map[string]any{}
	for key, value := range map[string]string{
		"id":            cfg.Provider.ID,
		"client_id":     cfg.Provider.ClientID,
		"client_secret": cfg.Provider.ClientSecret,
		"redirect_uri":  cfg.Provider.RedirectURI,
		"auth_url":      cfg.Provider.AuthURL,
		"token_url":     cfg.Provider.TokenURL,
		"api_base_url":  cfg.Provider.APIBaseURL,
	} {
		if includeZero || strings.TrimSpace(value) != "" {
			provider[key] = value
		}
	}
	if includeZero || len(cfg.Provider.Scopes) > 0 {
		provider["scopes"] = append([]string(nil), cfg.Provider.Scopes...)
	}
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	fetch := map[string]any{}
	if includeZero || cfg.Fetch.PageSize != 0 {
		fetch["page_size"] = cfg.Fetch.PageSize
	}
	if includeZero || cfg.Fetch.PageDelayMillis != 0 {
		fetch["page_delay_ms"] = cfg.Fetch.PageDelayMillis
	}
	if includeZero || len(cfg.Fetch.Worklist) > 0 {
		fetch["worklist"] = append([]string(nil), cfg.Fetch.Worklist...)
	}
	if includeZero || cfg.Fetch.KeepPartialPages {
		fetch["keep_partial_pages"] = cfg.Fetch.KeepPartialPages
	}
	if includeZero || len(cfg.Fetch.Endpoints) > 0 {
		endpoints := make([]any, 0, len(cfg.Fetch.Endpoints))
		for _, endpoint := range cfg.Fetch.Endpoints {
			endpoints = append(endpoints, map[string]any{
				"name":         endpoint.Name,
				"path":         endpoint.Path,
				"object_types": append([]string(nil), endpoint.ObjectTypes...),
				"properties":   append([]string(nil), endpoint.Properties...),
			})
		}
		fetch["endpoints"] = endpoints
	}
	if len(fetch) > 0 {
		layer["fetch"] = fetch
	}
	return layer
}
