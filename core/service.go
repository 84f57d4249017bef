package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config             Config
	keys               KeySpace
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

type ServiceDependencies struct {
	Logger                Logger
	LoggerProvider        LoggerProvider
	MetricsRecorder       MetricsRecorder
	ErrorFactory          ErrorFactory
	ErrorMapper           ErrorMapper
	ConfigProvider        ConfigProvider
	OptionsResolver       OptionsResolver
	KVStore               KVStore
	AuthorizationProvider AuthorizationProvider
	ItemCollector         ItemCollector
	TokenInspector        TokenInspector
	CollectionRunStore    CollectionRunStore
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("crmitems", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("crmitems"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.nonceSource == nil {
		builder.nonceSource = GenerateNonce
	}
	if builder.now == nil {
		builder.now = time.Now
	}
	if builder.kvStore == nil {
		builder.kvStore = NewMemoryKVStoreWithClock(builder.now)
	}

	defaults := DefaultConfig()
	if builder.defaults != nil {
		defaults = *builder.defaults
	}
	finalConfig, err := ResolveConfig(
		context.Background(),
		defaults,
		builder.runtimeConfig,
		builder.configProvider,
		builder.optionsResolver,
	)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:             finalConfig,
		keys:               KeySpace{Namespace: finalConfig.OAuth.KeyNamespace},
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		kvStore:            builder.kvStore,
		authProvider:       builder.authProvider,
		itemCollector:      builder.itemCollector,
		tokenInspector:     builder.tokenInspector,
		collectionRunStore: builder.collectionRunStore,
		nonceSource:        builder.nonceSource,
		now:                builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Keys() KeySpace {
	if s == nil {
		return KeySpace{}
	}
	return s.keys
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:                s.logger,
		LoggerProvider:        s.loggerProvider,
		MetricsRecorder:       s.metricsRecorder,
		ErrorFactory:          s.errorFactory,
		ErrorMapper:           s.errorMapper,
		ConfigProvider:        s.configProvider,
		OptionsResolver:       s.optionsResolver,
		KVStore:               s.kvStore,
		AuthorizationProvider: s.authProvider,
		ItemCollector:         s.itemCollector,
		TokenInspector:        s.tokenInspector,
		CollectionRunStore:    s.collectionRunStore,
	}
}

// MapError converts err with the configured mapper.
func (s *Service) MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return defaultErrorMapper(err)
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return defaultErrorMapper(err)
}

func (s *Service) providerID() string {
	if s == nil {
		return ""
	}
	if s.authProvider != nil {
		if id := s.authProvider.ID(); id != "" {
			return id
		}
	}
	return s.config.Provider.ID
}
