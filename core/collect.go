package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultRunsPerPage = 20
	maxRunsPerPage     = 200
)

// CollectItems walks the configured collections with cred. Per-collection
// failures are reported on the result, not as an error.
func (s *Service) CollectItems(ctx context.Context, cred Credential) (result CollectionResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": s.providerID(), "org_id": cred.OrgID, "user_id": cred.UserID}
	defer func() {
		fields["item_count"] = len(result.Items)
		fields["failed_collections"] = len(result.Failed())
		s.observeOperation(ctx, startedAt, "collect_items", err, fields)
	}()

	if s.itemCollector == nil {
		return CollectionResult{}, fmt.Errorf("core: item collector is not configured")
	}
	if strings.TrimSpace(cred.AccessToken) == "" {
		return CollectionResult{}, &NoCredentialError{OrgID: cred.OrgID, UserID: cred.UserID}
	}

	result, err = s.itemCollector.Collect(ctx, cred)
	if err != nil {
		return CollectionResult{}, err
	}
	if result.ProviderID == "" {
		result.ProviderID = s.providerID()
	}
	fields["run_id"] = result.RunID

	if s.tokenInspector != nil && result.Account == nil {
		account, inspectErr := s.tokenInspector.Inspect(ctx, cred.AccessToken)
		if inspectErr != nil {
			s.logWarn(ctx, "token inspection failed", map[string]any{
				"run_id": result.RunID,
				"error":  scrubSecret(inspectErr.Error(), cred.AccessToken),
			})
		} else {
			result.Account = &account
		}
	}

	for _, status := range result.Collections {
		tags := map[string]string{
			"collection": status.Collection,
			"status":     string(status.Status),
		}
		s.recordCounter(ctx, "crmitems.collection.total", 1, tags)
		if status.Status == CollectionStatusFailed {
			s.logWarn(ctx, "collection failed", map[string]any{
				"run_id":     result.RunID,
				"collection": status.Collection,
				"pages":      status.Pages,
				"error":      status.Error,
			})
		}
	}

	if s.collectionRunStore != nil {
		run := RunFromResult(result, cred)
		if _, recordErr := s.collectionRunStore.Record(ctx, run); recordErr != nil {
			s.logWarn(ctx, "collection run not recorded", map[string]any{
				"run_id": result.RunID,
				"error":  recordErr.Error(),
			})
		}
	}
	return result, nil
}

func (s *Service) ListCollectionRuns(ctx context.Context, filter CollectionRunFilter) (page CollectionRunPage, err error) {
	startedAt := time.Now()
	fields := map[string]any{"provider_id": filter.ProviderID, "org_id": filter.OrgID, "user_id": filter.UserID}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_collection_runs", err, fields)
	}()

	if s.collectionRunStore == nil {
		return CollectionRunPage{}, fmt.Errorf("core: collection run store is not configured")
	}
	filter = NormalizeCollectionRunFilter(filter)
	return s.collectionRunStore.List(ctx, filter)
}

func NormalizeCollectionRunFilter(filter CollectionRunFilter) CollectionRunFilter {
	filter.ProviderID = strings.TrimSpace(filter.ProviderID)
	filter.OrgID = strings.TrimSpace(filter.OrgID)
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = defaultRunsPerPage
	}
	if filter.PerPage > maxRunsPerPage {
		filter.PerPage = maxRunsPerPage
	}
	return filter
}

// scrubSecret masks every occurrence of secret in text.
func scrubSecret(text string, secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return text
	}
	return strings.ReplaceAll(text, secret, RedactedValue)
}
