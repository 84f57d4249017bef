package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type PageFetcher interface {
	FetchAll(ctx context.Context, req FetchRequest) (PageResult, error)
}

// Aggregator walks the worklist one collection at a time and normalizes every
// fetched record. A failing collection never stops the walk.
type Aggregator struct {
	ProviderID       string
	APIBaseURL       string
	Worklist         []string
	Endpoints        core.EndpointTable
	Fetcher          PageFetcher
	Normalizer       core.Normalizer
	KeepPartialPages bool
	Logger           core.Logger
	Now              func() time.Time
	NewID            func() string
}

func NewAggregator(
	cfg core.Config,
	endpoints core.EndpointTable,
	fetcher PageFetcher,
	normalizer core.Normalizer,
) *Aggregator {
	return &Aggregator{
		ProviderID:       strings.TrimSpace(cfg.Provider.ID),
		APIBaseURL:       strings.TrimRight(strings.TrimSpace(cfg.Provider.APIBaseURL), "/"),
		Worklist:         append([]string(nil), cfg.Fetch.Worklist...),
		Endpoints:        endpoints,
		Fetcher:          fetcher,
		Normalizer:       normalizer,
		KeepPartialPages: cfg.Fetch.KeepPartialPages,
		Logger:           glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
		NewID: uuid.NewString,
	}
}

func (a *Aggregator) Collect(ctx context.Context, cred core.Credential) (core.CollectionResult, error) {
	if a == nil || a.Fetcher == nil || a.Normalizer == nil {
		return core.CollectionResult{}, fmt.Errorf("sync: aggregator requires a fetcher and normalizer")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	accessToken := strings.TrimSpace(cred.AccessToken)
	if accessToken == "" {
		return core.CollectionResult{}, &core.NoCredentialError{OrgID: cred.OrgID, UserID: cred.UserID}
	}

	logger := glog.Ensure(a.Logger)
	result := core.CollectionResult{
		RunID:       a.newID(),
		ProviderID:  a.ProviderID,
		Items:       []core.IntegrationItem{},
		Collections: make([]core.CollectionStatus, 0, len(a.Worklist)),
		StartedAt:   a.now(),
	}

	for _, name := range a.Worklist {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		mapping, ok := a.Endpoints.Lookup(name)
		if !ok {
			logger.Warn("no endpoint mapping for collection, skipping", "collection", name, "run_id", result.RunID)
			result.Collections = append(result.Collections, core.CollectionStatus{
				Collection: name,
				Status:     core.CollectionStatusSkipped,
				Error:      "no endpoint mapping",
			})
			continue
		}

		collectionURL := a.APIBaseURL + "/" + strings.TrimLeft(mapping.EndpointPath, "/")
		logger.Info("fetching collection", "collection", name, "run_id", result.RunID)
		page, err := a.Fetcher.FetchAll(ctx, FetchRequest{
			Collection:  name,
			AccessToken: accessToken,
			URL:         collectionURL,
			Properties:  mapping.Properties,
		})
		if err != nil && isContextError(ctx, err) {
			return result, err
		}

		status := core.CollectionStatus{
			Collection: name,
			Status:     core.CollectionStatusSucceeded,
			Pages:      page.Pages,
			Fetched:    len(page.Records),
		}
		records := page.Records
		if err != nil {
			status.Status = core.CollectionStatusFailed
			status.Error = err.Error()
			status.Err = err
			logger.Warn("collection fetch failed",
				"collection", name,
				"run_id", result.RunID,
				"fetched", len(page.Records),
				"error", err.Error(),
			)
			if !a.KeepPartialPages {
				records = nil
			}
		}

		for _, record := range records {
			result.Items = append(result.Items, a.Normalizer.Normalize(record, mapping.ObjectTypes, collectionURL))
		}
		status.Normalized = len(records)
		result.Collections = append(result.Collections, status)
		logger.Info("collection processed",
			"collection", name,
			"run_id", result.RunID,
			"status", string(status.Status),
			"normalized", status.Normalized,
		)
	}

	result.FinishedAt = a.now()
	return result, nil
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *Aggregator) newID() string {
	if a.NewID != nil {
		if id := strings.TrimSpace(a.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func isContextError(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ctx.Err())
}

var _ core.ItemCollector = (*Aggregator)(nil)
