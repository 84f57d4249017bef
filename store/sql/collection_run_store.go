package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CollectionRunStore keeps one row per item collection run. Normalized items
// are never stored, only per-collection outcomes.
type CollectionRunStore struct {
	db   *bun.DB
	repo repository.Repository[*collectionRunRecord]
	now  func() time.Time
}

func NewCollectionRunStore(db *bun.DB) (*CollectionRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*collectionRunRecord](db, collectionRunHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid collection run repository wiring: %w", err)
		}
	}
	return &CollectionRunStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *CollectionRunStore) Record(ctx context.Context, run core.CollectionRun) (core.CollectionRun, error) {
	if s == nil || s.repo == nil {
		return core.CollectionRun{}, fmt.Errorf("sqlstore: collection run store is not configured")
	}
	run.ProviderID = strings.TrimSpace(run.ProviderID)
	if run.ProviderID == "" {
		return core.CollectionRun{}, fmt.Errorf("sqlstore: provider id is required")
	}
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = core.CollectionRunSucceeded
	}
	now := s.now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.CreatedAt
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.CreatedAt
	}

	created, err := s.repo.Create(ctx, newCollectionRunRecord(run))
	if err != nil {
		return core.CollectionRun{}, err
	}
	return created.toDomain(), nil
}

func (s *CollectionRunStore) Get(ctx context.Context, id string) (core.CollectionRun, error) {
	if s == nil || s.repo == nil {
		return core.CollectionRun{}, fmt.Errorf("sqlstore: collection run store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.CollectionRun{}, err
	}
	return record.toDomain(), nil
}

func (s *CollectionRunStore) List(ctx context.Context, filter core.CollectionRunFilter) (core.CollectionRunPage, error) {
	if s == nil || s.repo == nil {
		return core.CollectionRunPage{}, fmt.Errorf("sqlstore: collection run store is not configured")
	}
	filter = core.NormalizeCollectionRunFilter(filter)
	offset := (filter.Page - 1) * filter.PerPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(filter.PerPage, offset),
	}
	if providerID := strings.TrimSpace(filter.ProviderID); providerID != "" {
		selectors = append(selectors, repository.SelectBy("provider_id", "=", providerID))
	}
	if orgID := strings.TrimSpace(filter.OrgID); orgID != "" {
		selectors = append(selectors, repository.SelectBy("org_id", "=", orgID))
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		selectors = append(selectors, repository.SelectBy("user_id", "=", userID))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.CollectionRunPage{}, err
	}
	items := make([]core.CollectionRun, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	hasNext := offset+len(items) < total
	nextOffset := ""
	if hasNext {
		nextOffset = strconv.Itoa(offset + len(items))
	}
	return core.CollectionRunPage{
		Items:      items,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		Total:      total,
		HasNext:    hasNext,
		NextOffset: nextOffset,
	}, nil
}

// Prune deletes runs created before cutoff and reports how many were removed.
func (s *CollectionRunStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: collection run store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*collectionRunRecord)(nil)).
		Where("created_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
