package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crm-items/core"
)

type AuthorizationService interface {
	Authorize(ctx context.Context, userID string, orgID string) (string, error)
	HandleCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error)
}

type AuthorizeCommand struct {
	service AuthorizationService
}

func NewAuthorizeCommand(service AuthorizationService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorization service is required")
	}
	url, err := c.service.Authorize(ctx, msg.UserID, msg.OrgID)
	if err != nil {
		return err
	}
	storeResult(ctx, AuthorizeResult{URL: url})
	return nil
}

type CompleteCallbackCommand struct {
	service AuthorizationService
}

func NewCompleteCallbackCommand(service AuthorizationService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.HandleCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
