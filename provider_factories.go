package crmitems

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-crm-items/adapters/gologger"
	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/providers/hubspot"
	crmsync "github.com/goliatone/go-crm-items/sync"
	"github.com/goliatone/go-crm-items/transport"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

func HubSpotProvider(cfg hubspot.Config) (core.AuthorizationProvider, error) {
	return hubspot.New(cfg)
}

// HubSpotDependencies are the injected collaborators of NewHubSpotService.
// Every field is optional.
type HubSpotDependencies struct {
	// HTTPClient is used for the token endpoint and for API reads.
	HTTPClient         transport.HTTPDoer
	KVStore            core.KVStore
	CollectionRunStore core.CollectionRunStore
	ConfigProvider     core.ConfigProvider
	// TokenInfoCache caches account lookups. When nil and TokenInfoCacheTTL
	// is positive an in-process cache is created.
	TokenInfoCache    repositorycache.CacheService
	TokenInfoCacheTTL time.Duration
	Logger            glog.Logger
	LoggerProvider    glog.LoggerProvider
}

// NewHubSpotService resolves cfg over the HubSpot defaults and wires the
// OAuth client, paginator, aggregator and token inspector into a service.
// opts are applied last.
func NewHubSpotService(ctx context.Context, cfg Config, deps HubSpotDependencies, opts ...Option) (*Service, error) {
	defaults := hubspot.DefaultConfig()
	resolved, err := core.ResolveConfig(ctx, defaults, cfg, deps.ConfigProvider, nil)
	if err != nil {
		return nil, err
	}
	resolved = hubspot.ApplyDefaults(resolved)
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	provider, err := hubspot.New(hubspot.ConfigFromProvider(resolved.Provider, deps.HTTPClient))
	if err != nil {
		return nil, err
	}

	adapter := transport.NewRESTAdapter(deps.HTTPClient)
	paginator := crmsync.NewPaginator(adapter, resolved.Fetch.PageSize, resolved.Fetch.PageDelay())
	paginator.ProviderID = resolved.Provider.ID
	paginator.Logger = gologger.ComponentLogger(deps.LoggerProvider, deps.Logger, "sync")

	aggregator := crmsync.NewAggregator(
		resolved,
		hubspot.EndpointTable(resolved.Fetch.Endpoints...),
		paginator,
		hubspot.NewNormalizer(),
	)
	aggregator.Logger = paginator.Logger

	tokenCache := deps.TokenInfoCache
	if tokenCache == nil && deps.TokenInfoCacheTTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = deps.TokenInfoCacheTTL
		tokenCache, err = repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("crmitems: token info cache: %w", err)
		}
	}
	inspector, err := hubspot.NewTokenInfoClient(adapter, resolved.Provider.APIBaseURL, tokenCache)
	if err != nil {
		return nil, err
	}

	options := append(gologger.ServiceOptions(deps.LoggerProvider, deps.Logger),
		core.WithDefaults(defaults),
		core.WithAuthorizationProvider(provider),
		core.WithItemCollector(aggregator),
		core.WithTokenInspector(inspector),
	)
	if deps.ConfigProvider != nil {
		options = append(options, core.WithConfigProvider(deps.ConfigProvider))
	}
	if deps.KVStore != nil {
		options = append(options, core.WithKVStore(deps.KVStore))
	}
	if deps.CollectionRunStore != nil {
		options = append(options, core.WithCollectionRunStore(deps.CollectionRunStore))
	}
	options = append(options, opts...)
	return core.NewService(resolved, options...)
}
