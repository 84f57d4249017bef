package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput         = "CRM_BAD_INPUT"
	ServiceErrorProviderRedirect = "CRM_PROVIDER_REDIRECT_ERROR"
	ServiceErrorStateMismatch    = "CRM_OAUTH_STATE_MISMATCH"
	ServiceErrorNoCredential     = "CRM_CREDENTIALS_NOT_FOUND"
	ServiceErrorPageFetchFailed  = "CRM_PAGE_FETCH_FAILED"
	ServiceErrorTokenExchange    = "CRM_TOKEN_EXCHANGE_FAILED"
	ServiceErrorRateLimited      = "CRM_RATE_LIMITED"
	ServiceErrorUnauthorized     = "CRM_UNAUTHORIZED"
	ServiceErrorForbidden        = "CRM_FORBIDDEN"
	ServiceErrorNotFound         = "CRM_NOT_FOUND"
	ServiceErrorOperationFailed  = "CRM_OPERATION_FAILED"
	ServiceErrorExternalFailure  = "CRM_EXTERNAL_FAILURE"
	ServiceErrorStoreUnavailable = "CRM_STORE_UNAVAILABLE"
	ServiceErrorInternal         = "CRM_INTERNAL_ERROR"
)

var (
	ErrKeyNotFound      = errors.New("core: key not found")
	ErrProviderRedirect = errors.New("core: provider reported an authorization error")
	ErrStateMismatch    = errors.New("core: oauth state does not match")
	ErrNoCredential     = errors.New("core: no credentials found")
	ErrPageFetch        = errors.New("core: page fetch failed")
)

// ServiceErrorConvertible is implemented by typed errors that know their
// go-errors envelope.
type ServiceErrorConvertible interface {
	ToServiceError() *goerrors.Error
}

// ProviderRedirectError reports an `error` parameter on the provider redirect.
type ProviderRedirectError struct {
	Code        string
	Description string
}

func (e *ProviderRedirectError) Error() string {
	if e == nil {
		return ErrProviderRedirect.Error()
	}
	return ErrProviderRedirect.Error() + ": " + e.Message()
}

func (e *ProviderRedirectError) Message() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	description := strings.TrimSpace(e.Description)
	switch {
	case code != "" && description != "":
		return code + ": " + description
	case description != "":
		return description
	default:
		return code
	}
}

func (e *ProviderRedirectError) Unwrap() error {
	return ErrProviderRedirect
}

func (e *ProviderRedirectError) ToServiceError() *goerrors.Error {
	message := "provider authorization error"
	if e != nil && e.Message() != "" {
		message = e.Message()
	}
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorProviderRedirect)
}

// StateMismatchError is returned when the callback state is missing, expired,
// or does not carry the stored nonce. It is treated as a possible forgery.
type StateMismatchError struct {
	OrgID  string
	UserID string
	Reason string
}

func (e *StateMismatchError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return ErrStateMismatch.Error()
	}
	return ErrStateMismatch.Error() + ": " + strings.TrimSpace(e.Reason)
}

func (e *StateMismatchError) Unwrap() error {
	return ErrStateMismatch
}

func (e *StateMismatchError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{}
	if e != nil {
		if e.OrgID != "" {
			metadata["org_id"] = e.OrgID
		}
		if e.UserID != "" {
			metadata["user_id"] = e.UserID
		}
	}
	err := goerrors.New("State does not match.", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorStateMismatch)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// NoCredentialError means the credential was never stored, already consumed,
// or expired. The caller must re-authorize.
type NoCredentialError struct {
	OrgID  string
	UserID string
}

func (e *NoCredentialError) Error() string {
	return ErrNoCredential.Error()
}

func (e *NoCredentialError) Unwrap() error {
	return ErrNoCredential
}

func (e *NoCredentialError) ToServiceError() *goerrors.Error {
	return goerrors.New("No credentials found.", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorNoCredential)
}

// PageFetchError reports a failed page request for one collection.
type PageFetchError struct {
	Collection string
	URL        string
	StatusCode int
	Page       int
	Body       string
	Cause      error
}

func (e *PageFetchError) Error() string {
	if e == nil {
		return ErrPageFetch.Error()
	}
	parts := []string{ErrPageFetch.Error()}
	if e.Collection != "" {
		parts = append(parts, "collection="+e.Collection)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	parts = append(parts, fmt.Sprintf("page=%d", e.Page))
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	} else if body := strings.TrimSpace(e.Body); body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, ": ")
}

func (e *PageFetchError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrPageFetch
	}
	return errors.Join(ErrPageFetch, e.Cause)
}

func (e *PageFetchError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{}
	if e != nil {
		metadata["collection"] = e.Collection
		metadata["page"] = e.Page
		if e.StatusCode > 0 {
			metadata["status_code"] = e.StatusCode
		}
	}
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ServiceErrorPageFetchFailed).
		WithMetadata(metadata)
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	// The outermost typed error describes the failing operation; causes it
	// wraps may carry their own envelopes.
	if convertible, ok := err.(ServiceErrorConvertible); ok {
		return ensureServiceErrorEnvelope(convertible.ToServiceError())
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	var convertible ServiceErrorConvertible
	if errors.As(err, &convertible) {
		return ensureServiceErrorEnvelope(convertible.ToServiceError())
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, ServiceErrorRateLimited)
	case strings.Contains(msg, "token endpoint"), strings.Contains(msg, "token request"):
		return newServiceError(err.Error(), goerrors.CategoryExternal, ServiceErrorTokenExchange)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func badInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ServiceErrorForbidden
	case goerrors.CategoryRateLimit:
		return ServiceErrorRateLimited
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	case goerrors.CategoryExternal:
		return ServiceErrorExternalFailure
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
