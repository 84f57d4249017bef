package sqlstore

import "github.com/goliatone/go-crm-items/core"

var (
	_ core.CollectionRunStore = (*CollectionRunStore)(nil)
)
