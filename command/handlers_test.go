package command

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestAuthorizeCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := stubAuthorizationService{
		authorizeFn: func(_ context.Context, userID string, orgID string) (string, error) {
			called = true
			if userID != "usr_1" || orgID != "org_1" {
				t.Fatalf("unexpected pair %q %q", userID, orgID)
			}
			return "https://app.hubspot.com/oauth/authorize?state=x", nil
		},
	}

	cmd := NewAuthorizeCommand(svc)
	collector := gocmd.NewResult[AuthorizeResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, AuthorizeMessage{UserID: "usr_1", OrgID: "org_1"}); err != nil {
		t.Fatalf("execute authorize: %v", err)
	}
	if !called {
		t.Fatalf("expected authorize invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.URL != "https://app.hubspot.com/oauth/authorize?state=x" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestAuthorizeCommand_PropagatesServiceError(t *testing.T) {
	svc := stubAuthorizationService{
		authorizeFn: func(context.Context, string, string) (string, error) {
			return "", fmt.Errorf("kv down")
		},
	}
	if err := NewAuthorizeCommand(svc).Execute(context.Background(), AuthorizeMessage{UserID: "u", OrgID: "o"}); err == nil {
		t.Fatalf("expected service error")
	}
}

func TestCompleteCallbackCommand_StoresResponse(t *testing.T) {
	svc := stubAuthorizationService{
		callbackFn: func(_ context.Context, req core.CallbackRequest) (core.CallbackResponse, error) {
			if req.Query.Get("code") != "abc" {
				t.Fatalf("expected code abc, got %q", req.Query.Get("code"))
			}
			return core.CallbackResponse{ContentType: "text/html; charset=utf-8", Body: []byte("<html></html>")}, nil
		},
	}
	cmd := NewCompleteCallbackCommand(svc)
	collector := gocmd.NewResult[core.CallbackResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CompleteCallbackMessage{Request: core.CallbackRequest{
		Query: url.Values{"code": {"abc"}, "state": {"{}"}},
	}})
	if err != nil {
		t.Fatalf("execute callback: %v", err)
	}
	result, ok := collector.Load()
	if !ok || string(result.Body) != "<html></html>" {
		t.Fatalf("unexpected stored response %#v", result)
	}
}

func TestAuthorizeMessage_ValidateReturnsRichError(t *testing.T) {
	err := (AuthorizeMessage{OrgID: "org_1"}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 || validation[0].Field != "user_id" {
		t.Fatalf("expected user_id validation field, got %#v", validation)
	}
}

func TestCompleteCallbackMessage_Validate(t *testing.T) {
	if err := (CompleteCallbackMessage{}).Validate(); err == nil {
		t.Fatalf("expected missing query error")
	}
	if err := (CompleteCallbackMessage{Request: core.CallbackRequest{Query: url.Values{"code": {"abc"}}}}).Validate(); err == nil {
		t.Fatalf("expected missing state error")
	}
	providerErr := CompleteCallbackMessage{Request: core.CallbackRequest{Query: url.Values{"error": {"access_denied"}}}}
	if err := providerErr.Validate(); err != nil {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
}

func TestAuthorizeCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *AuthorizeCommand
	err := cmd.Execute(context.Background(), AuthorizeMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

type stubAuthorizationService struct {
	authorizeFn func(ctx context.Context, userID string, orgID string) (string, error)
	callbackFn  func(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error)
}

func (s stubAuthorizationService) Authorize(ctx context.Context, userID string, orgID string) (string, error) {
	if s.authorizeFn == nil {
		return "", nil
	}
	return s.authorizeFn(ctx, userID, orgID)
}

func (s stubAuthorizationService) HandleCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResponse, error) {
	if s.callbackFn == nil {
		return core.CallbackResponse{}, nil
	}
	return s.callbackFn(ctx, req)
}
