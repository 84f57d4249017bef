package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-crm-items/core"
	"github.com/goliatone/go-crm-items/ratelimit"
	"github.com/goliatone/go-crm-items/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultPageSize     = core.DefaultPageSize
	maxErrorBodySnippet = 512
	cursorParamAfter    = "after"
	cursorParamOffset   = "offset"
)

type FetchRequest struct {
	Collection  string
	AccessToken string
	URL         string
	Properties  []string
}

type PageResult struct {
	Records []core.RawRecord
	Pages   int
}

type pagePayload struct {
	Results []core.RawRecord `json:"results"`
	Paging  struct {
		Next struct {
			After any `json:"after"`
		} `json:"next"`
	} `json:"paging"`
	// Legacy v1 endpoints page with hasMore/offset.
	HasMore bool `json:"hasMore"`
	Offset  any  `json:"offset"`
}

// Paginator walks a collection endpoint page by page until the provider
// stops returning a cursor.
type Paginator struct {
	Transport  core.TransportAdapter
	PageSize   int
	Pacer      *ratelimit.Pacer
	ProviderID string
	Logger     core.Logger
	Now        func() time.Time
}

func NewPaginator(adapter core.TransportAdapter, pageSize int, pageDelay time.Duration) *Paginator {
	return &Paginator{
		Transport: adapter,
		PageSize:  pageSize,
		Pacer:     ratelimit.NewPacer(pageDelay),
		Logger:    glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// FetchAll returns every record of req.URL in page order. On a failed page it
// returns the records accumulated so far together with a *core.PageFetchError.
func (p *Paginator) FetchAll(ctx context.Context, req FetchRequest) (PageResult, error) {
	result := PageResult{Records: []core.RawRecord{}}
	if p == nil || p.Transport == nil {
		return result, fmt.Errorf("sync: paginator requires a transport adapter")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.URL) == "" {
		return result, fmt.Errorf("sync: collection url is required")
	}

	logger := glog.Ensure(p.Logger)
	cursorParam, cursor := "", ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		query := map[string]string{
			"limit":    strconv.Itoa(p.pageSize()),
			"archived": "false",
		}
		if len(req.Properties) > 0 {
			query["properties"] = strings.Join(req.Properties, ",")
		}
		if cursor != "" {
			query[cursorParam] = cursor
		}

		res, err := p.Transport.Do(ctx, core.TransportRequest{
			Method:  http.MethodGet,
			URL:     req.URL,
			Headers: transport.BearerHeaders(req.AccessToken),
			Query:   query,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, &core.PageFetchError{
				Collection: req.Collection,
				URL:        req.URL,
				Page:       page,
				Cause:      err,
			}
		}
		if !transport.IsSuccess(res) {
			pageErr := &core.PageFetchError{
				Collection: req.Collection,
				URL:        req.URL,
				StatusCode: res.StatusCode,
				Page:       page,
				Body:       snippet(res.Body),
			}
			if throttled, ok := ratelimit.Inspect(p.ProviderID, req.Collection, ratelimit.ResponseMeta{
				StatusCode: res.StatusCode,
				Headers:    res.Headers,
			}, p.now()); ok {
				pageErr.Cause = throttled
			}
			return result, pageErr
		}

		payload, err := decodePage(res.Body)
		if err != nil {
			return result, &core.PageFetchError{
				Collection: req.Collection,
				URL:        req.URL,
				StatusCode: res.StatusCode,
				Page:       page,
				Body:       snippet(res.Body),
				Cause:      err,
			}
		}
		result.Records = append(result.Records, payload.Results...)
		result.Pages = page

		cursorParam, cursor = nextCursor(payload)
		logger.Debug("page fetched",
			"collection", req.Collection,
			"page", page,
			"records", len(payload.Results),
			"has_next", cursor != "",
		)
		if cursor == "" {
			return result, nil
		}
		if err := p.Pacer.Pause(ctx); err != nil {
			return result, err
		}
	}
}

func (p *Paginator) pageSize() int {
	if p.PageSize <= 0 {
		return defaultPageSize
	}
	return p.PageSize
}

func (p *Paginator) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func decodePage(body []byte) (pagePayload, error) {
	var payload pagePayload
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return pagePayload{}, fmt.Errorf("sync: decode page: %w", err)
	}
	return payload, nil
}

func nextCursor(payload pagePayload) (string, string) {
	if after := cursorString(payload.Paging.Next.After); after != "" {
		return cursorParamAfter, after
	}
	if payload.HasMore {
		if offset := cursorString(payload.Offset); offset != "" {
			return cursorParamOffset, offset
		}
	}
	return "", ""
}

func cursorString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// snippet trims body to at most maxErrorBodySnippet bytes without splitting
// a UTF-8 sequence.
func snippet(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) <= maxErrorBodySnippet {
		return trimmed
	}
	cut := maxErrorBodySnippet
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}
