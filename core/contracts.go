package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// KVStore is the shared ephemeral cache used for OAuth state and credential
// handoff. Get and Take return ErrKeyNotFound for absent or expired keys.
type KVStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Take reads and removes key atomically.
	Take(ctx context.Context, key string) ([]byte, error)
}

type AuthorizationProvider interface {
	ID() string
	AuthorizationURL(state string) (string, error)
	// ExchangeCode returns the raw token endpoint response body.
	ExchangeCode(ctx context.Context, code string) ([]byte, error)
}

type Normalizer interface {
	Normalize(raw RawRecord, types ObjectTypes, baseURL string) IntegrationItem
}

type ItemCollector interface {
	Collect(ctx context.Context, cred Credential) (CollectionResult, error)
}

type TokenInspector interface {
	Inspect(ctx context.Context, accessToken string) (AccountInfo, error)
}

type CollectionRunStore interface {
	Record(ctx context.Context, run CollectionRun) (CollectionRun, error)
	List(ctx context.Context, filter CollectionRunFilter) (CollectionRunPage, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// IntegrationService is the surface exposed to commands, queries, and inbound
// handlers.
type IntegrationService interface {
	Authorize(ctx context.Context, userID string, orgID string) (string, error)
	HandleCallback(ctx context.Context, req CallbackRequest) (CallbackResponse, error)
	ConsumeCredentials(ctx context.Context, userID string, orgID string) (Credential, error)
	CollectItems(ctx context.Context, cred Credential) (CollectionResult, error)
	ListCollectionRuns(ctx context.Context, filter CollectionRunFilter) (CollectionRunPage, error)
}
