package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_TypedErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		code     int
		textCode string
	}{
		{
			name:     "provider redirect",
			err:      &ProviderRedirectError{Code: "access_denied", Description: "user declined"},
			sentinel: ErrProviderRedirect,
			code:     http.StatusBadRequest,
			textCode: ServiceErrorProviderRedirect,
		},
		{
			name:     "state mismatch",
			err:      &StateMismatchError{OrgID: "org_1", UserID: "usr_1"},
			sentinel: ErrStateMismatch,
			code:     http.StatusBadRequest,
			textCode: ServiceErrorStateMismatch,
		},
		{
			name:     "no credential",
			err:      &NoCredentialError{OrgID: "org_1", UserID: "usr_1"},
			sentinel: ErrNoCredential,
			code:     http.StatusBadRequest,
			textCode: ServiceErrorNoCredential,
		},
		{
			name:     "page fetch",
			err:      &PageFetchError{Collection: "contacts", StatusCode: 500, Page: 2, Body: "boom"},
			sentinel: ErrPageFetch,
			code:     http.StatusBadGateway,
			textCode: ServiceErrorPageFetchFailed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Fatalf("expected errors.Is sentinel match")
			}
			mapped := serviceErrorMapper(wrapped)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.Code != tc.code {
				t.Fatalf("expected code %d, got %d", tc.code, mapped.Code)
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
		})
	}
}

func TestProviderRedirectError_Message(t *testing.T) {
	err := &ProviderRedirectError{Code: "access_denied", Description: "user declined"}
	mapped := err.ToServiceError()
	if mapped.Message != "access_denied: user declined" {
		t.Fatalf("unexpected provider message %q", mapped.Message)
	}
	bare := (&ProviderRedirectError{Code: "access_denied"}).ToServiceError()
	if bare.Message != "access_denied" {
		t.Fatalf("unexpected bare provider message %q", bare.Message)
	}
}

func TestPageFetchError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &PageFetchError{Collection: "deals", Page: 3, Cause: cause}
	if !errors.Is(err, cause) || !errors.Is(err, ErrPageFetch) {
		t.Fatalf("expected both cause and sentinel to match")
	}
	mapped := err.ToServiceError()
	if mapped.Metadata["collection"] != "deals" || mapped.Metadata["page"] != 3 {
		t.Fatalf("unexpected metadata %#v", mapped.Metadata)
	}
}

func TestServiceErrorMapper_PreservesRichErrors(t *testing.T) {
	source := goerrors.New("provider down", goerrors.CategoryExternal).
		WithTextCode("CUSTOM_CODE")
	mapped := serviceErrorMapper(source)
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("expected custom text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code == 0 {
		t.Fatalf("expected status code to be populated")
	}
}

func TestServiceErrorMapper_FallbackClassification(t *testing.T) {
	if mapped := serviceErrorMapper(errors.New("oauth2: token endpoint returned status 401")); mapped.TextCode != ServiceErrorTokenExchange {
		t.Fatalf("expected token exchange text code, got %q", mapped.TextCode)
	}
	if mapped := serviceErrorMapper(errors.New("user_id is required")); mapped.TextCode != ServiceErrorBadInput {
		t.Fatalf("expected bad input text code, got %q", mapped.TextCode)
	}
	if mapped := serviceErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil mapping for nil error")
	}
}
