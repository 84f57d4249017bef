package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB
)

var ErrTokenExchange = errors.New("providers: token exchange failed")

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type OAuth2Config struct {
	ID           string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	// ClientSecretInBody sends client credentials as form fields instead of
	// HTTP basic auth.
	ClientSecretInBody  bool
	TokenRequestTimeout time.Duration
	HTTPClient          HTTPDoer
}

// OAuth2Client drives the authorization-code grant for a single provider
// registration and returns token endpoint responses untouched.
type OAuth2Client struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

// TokenExchangeError reports a rejected or unreadable token endpoint call.
type TokenExchangeError struct {
	ProviderID  string
	StatusCode  int
	Code        string
	Description string
	Cause       error
}

func (e *TokenExchangeError) Error() string {
	if e == nil {
		return ErrTokenExchange.Error()
	}
	parts := []string{ErrTokenExchange.Error()}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("token endpoint status %d", e.StatusCode))
	}
	if detail := e.detail(); detail != "" {
		parts = append(parts, detail)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *TokenExchangeError) detail() string {
	if strings.TrimSpace(e.Description) != "" {
		return strings.TrimSpace(e.Description)
	}
	return strings.TrimSpace(e.Code)
}

func (e *TokenExchangeError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return ErrTokenExchange
	}
	return errors.Join(ErrTokenExchange, e.Cause)
}

func (e *TokenExchangeError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{}
	if e != nil {
		metadata["provider_id"] = e.ProviderID
		if e.StatusCode > 0 {
			metadata["status_code"] = e.StatusCode
		}
		if e.Code != "" {
			metadata["provider_error"] = e.Code
		}
	}
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ServiceErrorTokenExchange).
		WithMetadata(metadata)
}

func NewOAuth2Client(cfg OAuth2Config) (*OAuth2Client, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	cfg.Scopes = normalizeScopes(cfg.Scopes)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	return &OAuth2Client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Client) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Client) Scopes() []string {
	if p == nil {
		return []string{}
	}
	return append([]string(nil), p.cfg.Scopes...)
}

// AuthorizationURL embeds state verbatim; it is already serialized by the
// caller.
func (p *OAuth2Client) AuthorizationURL(state string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 client is nil")
	}
	if strings.TrimSpace(state) == "" {
		return "", fmt.Errorf("providers: oauth state is required")
	}

	values := url.Values{}
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.RedirectURI != "" {
		values.Set("redirect_uri", p.cfg.RedirectURI)
	}
	if len(p.cfg.Scopes) > 0 {
		values.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}
	values.Set("state", state)

	authURL := p.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}
	return authURL, nil
}

func (p *OAuth2Client) ExchangeCode(ctx context.Context, code string) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("providers: oauth2 client is nil")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("providers: auth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if p.cfg.RedirectURI != "" {
		form.Set("redirect_uri", p.cfg.RedirectURI)
	}
	return p.fetchToken(ctx, form)
}

func (p *OAuth2Client) fetchToken(ctx context.Context, form url.Values) ([]byte, error) {
	if p.httpClient == nil {
		return nil, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx := ctx
	cancel := func() {}
	if p.cfg.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TokenExchangeError{ProviderID: p.cfg.ID, Cause: err}
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return nil, &TokenExchangeError{ProviderID: p.cfg.ID, StatusCode: response.StatusCode, Cause: readErr}
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return nil, &TokenExchangeError{
			ProviderID:  p.cfg.ID,
			StatusCode:  response.StatusCode,
			Description: fmt.Sprintf("token response exceeds %d bytes", maxTokenResponseBodyBytes),
		}
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, &TokenExchangeError{
			ProviderID:  p.cfg.ID,
			StatusCode:  response.StatusCode,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if parseErr != nil {
		return nil, &TokenExchangeError{ProviderID: p.cfg.ID, StatusCode: response.StatusCode, Cause: parseErr}
	}
	if payload.ErrorCode != "" {
		return nil, &TokenExchangeError{
			ProviderID:  p.cfg.ID,
			StatusCode:  response.StatusCode,
			Code:        payload.ErrorCode,
			Description: payload.ErrorDescription,
		}
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return nil, &TokenExchangeError{
			ProviderID:  p.cfg.ID,
			StatusCode:  response.StatusCode,
			Description: "token endpoint response missing access token",
		}
	}
	return body, nil
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	errorCode := readAnyString(decoded["error"])
	if errorCode == "" {
		// HubSpot reports failures as {"status": "BAD_AUTH_CODE", "message": ...}.
		errorCode = readAnyString(decoded["status"])
	}
	description := readAnyString(decoded["error_description"])
	if description == "" {
		description = readAnyString(decoded["message"])
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        errorCode,
		ErrorDescription: description,
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

// normalizeScopes trims and deduplicates while keeping the configured order.
func normalizeScopes(input []string) []string {
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		for _, part := range strings.Fields(value) {
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			values = append(values, part)
		}
	}
	return values
}

var _ core.AuthorizationProvider = (*OAuth2Client)(nil)
