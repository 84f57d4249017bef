package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	"github.com/uptrace/bun"
)

type collectionRunRecord struct {
	bun.BaseModel `bun:"table:crm_collection_runs,alias:ccr"`

	ID          string                  `bun:"id,pk"`
	ProviderID  string                  `bun:"provider_id,notnull"`
	OrgID       string                  `bun:"org_id,notnull"`
	UserID      string                  `bun:"user_id,notnull"`
	Status      string                  `bun:"status,notnull"`
	ItemCount   int                     `bun:"item_count,notnull"`
	Collections []core.CollectionStatus `bun:"collections,type:jsonb,notnull"`
	StartedAt   time.Time               `bun:"started_at,notnull"`
	FinishedAt  time.Time               `bun:"finished_at,notnull"`
	CreatedAt   time.Time               `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newCollectionRunRecord(run core.CollectionRun) *collectionRunRecord {
	collections := make([]core.CollectionStatus, 0, len(run.Collections))
	for _, status := range run.Collections {
		status.Err = nil
		collections = append(collections, status)
	}
	return &collectionRunRecord{
		ID:          strings.TrimSpace(run.ID),
		ProviderID:  strings.TrimSpace(run.ProviderID),
		OrgID:       strings.TrimSpace(run.OrgID),
		UserID:      strings.TrimSpace(run.UserID),
		Status:      strings.TrimSpace(string(run.Status)),
		ItemCount:   run.ItemCount,
		Collections: collections,
		StartedAt:   run.StartedAt.UTC(),
		FinishedAt:  run.FinishedAt.UTC(),
		CreatedAt:   run.CreatedAt.UTC(),
	}
}

func (r *collectionRunRecord) toDomain() core.CollectionRun {
	if r == nil {
		return core.CollectionRun{}
	}
	return core.CollectionRun{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		OrgID:       r.OrgID,
		UserID:      r.UserID,
		Status:      core.CollectionRunStatus(r.Status),
		ItemCount:   r.ItemCount,
		Collections: append([]core.CollectionStatus(nil), r.Collections...),
		StartedAt:   r.StartedAt.UTC(),
		FinishedAt:  r.FinishedAt.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}
