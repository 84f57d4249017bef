package hubspot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/transport"
	goerrors "github.com/goliatone/go-errors"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	tokenInfoCacheKeyPrefix = "go-crm-items::hubspot_token_info::v1"
	tokenInfoPath           = "/oauth/v1/access-tokens/"
	maskedTokenSegment      = "[REDACTED]"
)

type tokenInfoPayload struct {
	User      string   `json:"user"`
	HubDomain string   `json:"hub_domain"`
	HubID     int64    `json:"hub_id"`
	Scopes    []string `json:"scopes"`
}

// TokenInfoClient resolves the portal an access token belongs to. Lookups are
// cached by a digest of the token when a cache service is supplied.
type TokenInfoClient struct {
	transport  core.TransportAdapter
	apiBaseURL string
	cache      repositorycache.CacheService
}

func NewTokenInfoClient(adapter core.TransportAdapter, apiBaseURL string, cacheService repositorycache.CacheService) (*TokenInfoClient, error) {
	if adapter == nil {
		return nil, fmt.Errorf("hubspot: token info transport is required")
	}
	apiBaseURL = strings.TrimRight(strings.TrimSpace(apiBaseURL), "/")
	if apiBaseURL == "" {
		apiBaseURL = APIBaseURL
	}
	return &TokenInfoClient{
		transport:  adapter,
		apiBaseURL: apiBaseURL,
		cache:      cacheService,
	}, nil
}

// TokenInfoCacheKey returns go-crm-items::hubspot_token_info::v1::<sha256(token)>.
func TokenInfoCacheKey(accessToken string) string {
	digest := sha256.Sum256([]byte(strings.TrimSpace(accessToken)))
	return tokenInfoCacheKeyPrefix + "::" + hex.EncodeToString(digest[:])
}

func (c *TokenInfoClient) Inspect(ctx context.Context, accessToken string) (core.AccountInfo, error) {
	if c == nil || c.transport == nil {
		return core.AccountInfo{}, fmt.Errorf("hubspot: token info client is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return core.AccountInfo{}, fmt.Errorf("hubspot: access token is required")
	}
	if c.cache == nil {
		return c.fetch(ctx, accessToken)
	}
	info, err := repositorycache.GetOrFetch(ctx, c.cache, TokenInfoCacheKey(accessToken), func(ctx context.Context) (core.AccountInfo, error) {
		return c.fetch(ctx, accessToken)
	})
	if err != nil {
		return core.AccountInfo{}, err
	}
	return cloneAccountInfo(info), nil
}

// Forget drops the cached lookup for accessToken.
func (c *TokenInfoClient) Forget(ctx context.Context, accessToken string) error {
	if c == nil || c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, TokenInfoCacheKey(accessToken))
}

// fetch never lets the request URL reach an error: the token is a path
// segment, so only the masked form is reported.
func (c *TokenInfoClient) fetch(ctx context.Context, accessToken string) (core.AccountInfo, error) {
	maskedURL := c.apiBaseURL + tokenInfoPath + maskedTokenSegment
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    c.apiBaseURL + tokenInfoPath + url.PathEscape(accessToken),
	})
	if err != nil {
		if ctx != nil && ctx.Err() != nil {
			return core.AccountInfo{}, ctx.Err()
		}
		category := goerrors.CategoryExternal
		var rich *goerrors.Error
		if goerrors.As(err, &rich) && rich.Category != "" {
			category = rich.Category
		}
		return core.AccountInfo{}, goerrors.New("hubspot: token info request failed", category).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorExternalFailure).
			WithMetadata(map[string]any{"provider_id": ProviderID, "url": maskedURL})
	}
	if !transport.IsSuccess(res) {
		return core.AccountInfo{}, goerrors.New(
			fmt.Sprintf("hubspot: token info request failed with status %d", res.StatusCode),
			goerrors.CategoryExternal,
		).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorExternalFailure).
			WithMetadata(map[string]any{"provider_id": ProviderID, "status_code": res.StatusCode, "url": maskedURL})
	}

	var payload tokenInfoPayload
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return core.AccountInfo{}, goerrors.Wrap(err, goerrors.CategoryExternal, "hubspot: decode token info").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ServiceErrorExternalFailure)
	}
	return core.AccountInfo{
		HubID:     payload.HubID,
		HubDomain: strings.TrimSpace(payload.HubDomain),
		User:      strings.TrimSpace(payload.User),
		Scopes:    append([]string(nil), payload.Scopes...),
	}, nil
}

func cloneAccountInfo(info core.AccountInfo) core.AccountInfo {
	cloned := info
	cloned.Scopes = append([]string(nil), info.Scopes...)
	return cloned
}

var _ core.TokenInspector = (*TokenInfoClient)(nil)
