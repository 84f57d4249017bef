package crmitems

import (
	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/providers/hubspot"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type KVStore = core.KVStore
type CollectionRunStore = core.CollectionRunStore
type MetricsRecorder = core.MetricsRecorder

type Credential = core.Credential
type CallbackRequest = core.CallbackRequest
type CallbackResponse = core.CallbackResponse
type IntegrationItem = core.IntegrationItem
type CollectionResult = core.CollectionResult
type CollectionRunFilter = core.CollectionRunFilter
type CollectionRunPage = core.CollectionRunPage

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorFactory          = core.WithErrorFactory
	WithErrorMapper           = core.WithErrorMapper
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithDefaults              = core.WithDefaults
	WithKVStore               = core.WithKVStore
	WithAuthorizationProvider = core.WithAuthorizationProvider
	WithItemCollector         = core.WithItemCollector
	WithTokenInspector        = core.WithTokenInspector
	WithCollectionRunStore    = core.WithCollectionRunStore
	WithNonceSource           = core.WithNonceSource
	WithClock                 = core.WithClock
)

// DefaultConfig returns the HubSpot service configuration.
func DefaultConfig() Config {
	return hubspot.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
