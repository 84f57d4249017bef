package query

import (
	"strings"

	"github.com/goliatone/go-crm-items/core"
)

const (
	TypeConsumeCredentials = "crmitems.query.credentials.consume"
	TypeCollectItems       = "crmitems.query.items.collect"
	TypeListCollectionRuns = "crmitems.query.collection_runs.list"
)

type ConsumeCredentialsMessage struct {
	UserID string
	OrgID  string
}

func (ConsumeCredentialsMessage) Type() string { return TypeConsumeCredentials }

func (m ConsumeCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.OrgID) == "" {
		return queryValidationError("org_id", "org id is required")
	}
	return nil
}

// CollectItemsMessage carries an already consumed credential.
type CollectItemsMessage struct {
	Credential core.Credential
}

func (CollectItemsMessage) Type() string { return TypeCollectItems }

func (m CollectItemsMessage) Validate() error {
	if strings.TrimSpace(m.Credential.AccessToken) == "" {
		return queryValidationError("access_token", "access token is required")
	}
	return nil
}

type ListCollectionRunsMessage struct {
	Filter core.CollectionRunFilter
}

func (ListCollectionRunsMessage) Type() string { return TypeListCollectionRuns }

func (m ListCollectionRunsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}
