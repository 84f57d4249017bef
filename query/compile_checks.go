package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crm-items/core"
)

var (
	_ gocmd.Querier[ConsumeCredentialsMessage, core.Credential]        = (*ConsumeCredentialsQuery)(nil)
	_ gocmd.Querier[CollectItemsMessage, core.CollectionResult]        = (*CollectItemsQuery)(nil)
	_ gocmd.Querier[ListCollectionRunsMessage, core.CollectionRunPage] = (*ListCollectionRunsQuery)(nil)
)
