package query

import (
	"context"

	"github.com/goliatone/go-crm-items/core"
)

type CredentialReader interface {
	ConsumeCredentials(ctx context.Context, userID string, orgID string) (core.Credential, error)
}

type ItemReader interface {
	CollectItems(ctx context.Context, cred core.Credential) (core.CollectionResult, error)
}

type CollectionRunReader interface {
	ListCollectionRuns(ctx context.Context, filter core.CollectionRunFilter) (core.CollectionRunPage, error)
}

// ConsumeCredentialsQuery removes the credential it returns; a second call
// for the same authorization fails.
type ConsumeCredentialsQuery struct {
	reader CredentialReader
}

func NewConsumeCredentialsQuery(reader CredentialReader) *ConsumeCredentialsQuery {
	return &ConsumeCredentialsQuery{reader: reader}
}

func (q *ConsumeCredentialsQuery) Query(ctx context.Context, msg ConsumeCredentialsMessage) (core.Credential, error) {
	if q == nil || q.reader == nil {
		return core.Credential{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.ConsumeCredentials(ctx, msg.UserID, msg.OrgID)
}

type CollectItemsQuery struct {
	reader ItemReader
}

func NewCollectItemsQuery(reader ItemReader) *CollectItemsQuery {
	return &CollectItemsQuery{reader: reader}
}

func (q *CollectItemsQuery) Query(ctx context.Context, msg CollectItemsMessage) (core.CollectionResult, error) {
	if q == nil || q.reader == nil {
		return core.CollectionResult{}, queryDependencyError("query: item reader is required")
	}
	return q.reader.CollectItems(ctx, msg.Credential)
}

type ListCollectionRunsQuery struct {
	reader CollectionRunReader
}

func NewListCollectionRunsQuery(reader CollectionRunReader) *ListCollectionRunsQuery {
	return &ListCollectionRunsQuery{reader: reader}
}

func (q *ListCollectionRunsQuery) Query(
	ctx context.Context,
	msg ListCollectionRunsMessage,
) (core.CollectionRunPage, error) {
	if q == nil || q.reader == nil {
		return core.CollectionRunPage{}, queryDependencyError("query: collection run reader is required")
	}
	return q.reader.ListCollectionRuns(ctx, msg.Filter)
}
