package crmitems

import (
	"fmt"

	crmcommand "github.com/goliatone/go-crm-items/command"
	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/inbound"
	crmquery "github.com/goliatone/go-crm-items/query"
	goerrors "github.com/goliatone/go-errors"
)

type Commands struct {
	Authorize        *crmcommand.AuthorizeCommand
	CompleteCallback *crmcommand.CompleteCallbackCommand
}

type Queries struct {
	ConsumeCredentials *crmquery.ConsumeCredentialsQuery
	CollectItems       *crmquery.CollectItemsQuery
	ListCollectionRuns *crmquery.ListCollectionRunsQuery
}

// Facade exposes the service as go-command handlers plus the OAuth callback
// http.Handler.
type Facade struct {
	service  core.IntegrationService
	commands Commands
	queries  Queries
	callback *inbound.CallbackHandler
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	callbackOptions []inbound.Option
}

func WithCallbackOptions(opts ...inbound.Option) FacadeOption {
	return func(options *facadeOptions) {
		options.callbackOptions = append(options.callbackOptions, opts...)
	}
}

func NewFacade(service core.IntegrationService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("crmitems: integration service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	callbackOptions := []inbound.Option{}
	if mapper, ok := service.(interface {
		MapError(err error) *goerrors.Error
	}); ok {
		callbackOptions = append(callbackOptions, inbound.WithErrorMapper(mapper.MapError))
	}
	callbackOptions = append(callbackOptions, cfg.callbackOptions...)

	facade := &Facade{service: service}
	facade.commands = Commands{
		Authorize:        crmcommand.NewAuthorizeCommand(service),
		CompleteCallback: crmcommand.NewCompleteCallbackCommand(service),
	}
	facade.queries = Queries{
		ConsumeCredentials: crmquery.NewConsumeCredentialsQuery(service),
		CollectItems:       crmquery.NewCollectItemsQuery(service),
		ListCollectionRuns: crmquery.NewListCollectionRunsQuery(service),
	}
	facade.callback = inbound.NewCallbackHandler(service, callbackOptions...)
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) CallbackHandler() *inbound.CallbackHandler {
	if f == nil {
		return nil
	}
	return f.callback
}

func (f *Facade) Service() core.IntegrationService {
	if f == nil {
		return nil
	}
	return f.service
}
