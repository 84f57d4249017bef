package command

import (
	"strings"

	"github.com/goliatone/go-crm-items/core"
)

const (
	TypeAuthorize        = "crmitems.command.authorize"
	TypeCompleteCallback = "crmitems.command.callback.complete"
)

type AuthorizeMessage struct {
	UserID string
	OrgID  string
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.OrgID) == "" {
		return commandValidationError("org_id", "org id is required")
	}
	return nil
}

// AuthorizeResult is stored on the go-command result collector.
type AuthorizeResult struct {
	URL string
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if m.Request.Query == nil {
		return commandValidationError("query", "callback query is required")
	}
	if strings.TrimSpace(m.Request.Query.Get("error")) != "" {
		// Provider errors are reported by the service with their own envelope.
		return nil
	}
	if strings.TrimSpace(m.Request.Query.Get("state")) == "" {
		return commandValidationError("state", "state is required")
	}
	return nil
}
