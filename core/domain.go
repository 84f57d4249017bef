package core

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthorizationState is the anti-forgery payload round-tripped through the
// provider redirect. Its JSON form is embedded verbatim in the authorization
// URL state parameter.
type AuthorizationState struct {
	Nonce  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// Credential wraps the token endpoint response. Raw keeps the provider payload
// untouched; the decoded fields are a convenience view over it.
type Credential struct {
	OrgID        string `json:"org_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Raw          []byte `json:"-"`
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.AccessToken) == "" && len(c.Raw) == 0
}

// ObjectTypes is the non-empty ordered set of item type tags declared for a
// collection. Single-type collections carry exactly one tag.
type ObjectTypes []string

func NewObjectTypes(tags ...string) ObjectTypes {
	out := make(ObjectTypes, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func (t ObjectTypes) Primary() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func (t ObjectTypes) Multi() bool {
	return len(t) > 1
}

// Match returns the declared tag equal (case-insensitively) to candidate.
func (t ObjectTypes) Match(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	for _, tag := range t {
		if strings.EqualFold(tag, candidate) {
			return tag, true
		}
	}
	return "", false
}

type EndpointMapping struct {
	Name         string
	EndpointPath string
	ObjectTypes  ObjectTypes
	Properties   []string
}

type RawRecord map[string]any

type IntegrationItem struct {
	ID               *string    `json:"id"`
	Name             *string    `json:"name"`
	Type             string     `json:"type"`
	CreationTime     *time.Time `json:"creation_time"`
	LastModifiedTime *time.Time `json:"last_modified_time"`
	URL              *string    `json:"url"`
}

type CallbackRequest struct {
	Query url.Values
}

func CallbackRequestFromHTTP(r *http.Request) CallbackRequest {
	if r == nil || r.URL == nil {
		return CallbackRequest{Query: url.Values{}}
	}
	return CallbackRequest{Query: r.URL.Query()}
}

type CallbackResponse struct {
	ContentType string
	Body        []byte
}

type CollectionStatusKind string

const (
	CollectionStatusSucceeded CollectionStatusKind = "succeeded"
	CollectionStatusFailed    CollectionStatusKind = "failed"
	CollectionStatusSkipped   CollectionStatusKind = "skipped"
)

type CollectionStatus struct {
	Collection string               `json:"collection"`
	Status     CollectionStatusKind `json:"status"`
	Pages      int                  `json:"pages"`
	Fetched    int                  `json:"fetched"`
	Normalized int                  `json:"normalized"`
	Error      string               `json:"error,omitempty"`
	Err        error                `json:"-"`
}

type AccountInfo struct {
	HubID     int64    `json:"hub_id,omitempty"`
	HubDomain string   `json:"hub_domain,omitempty"`
	User      string   `json:"user,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

type CollectionResult struct {
	RunID       string
	ProviderID  string
	Items       []IntegrationItem
	Collections []CollectionStatus
	Account     *AccountInfo
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Failed returns the statuses of collections whose fetch failed.
func (r CollectionResult) Failed() []CollectionStatus {
	out := []CollectionStatus{}
	for _, status := range r.Collections {
		if status.Status == CollectionStatusFailed {
			out = append(out, status)
		}
	}
	return out
}

type CollectionRunStatus string

const (
	CollectionRunSucceeded CollectionRunStatus = "succeeded"
	CollectionRunPartial   CollectionRunStatus = "partial"
	CollectionRunFailed    CollectionRunStatus = "failed"
)

type CollectionRun struct {
	ID          string
	ProviderID  string
	OrgID       string
	UserID      string
	Status      CollectionRunStatus
	ItemCount   int
	Collections []CollectionStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	CreatedAt   time.Time
}

type CollectionRunFilter struct {
	ProviderID string
	OrgID      string
	UserID     string
	Page       int
	PerPage    int
}

type CollectionRunPage struct {
	Items      []CollectionRun
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextOffset string
}

// RunFromResult builds the persisted summary of a collection result.
func RunFromResult(result CollectionResult, cred Credential) CollectionRun {
	run := CollectionRun{
		ID:          result.RunID,
		ProviderID:  result.ProviderID,
		OrgID:       strings.TrimSpace(cred.OrgID),
		UserID:      strings.TrimSpace(cred.UserID),
		ItemCount:   len(result.Items),
		Collections: append([]CollectionStatus(nil), result.Collections...),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	failed := len(result.Failed())
	attempted := 0
	for _, status := range result.Collections {
		if status.Status != CollectionStatusSkipped {
			attempted++
		}
	}
	switch {
	case failed == 0:
		run.Status = CollectionRunSucceeded
	case failed < attempted:
		run.Status = CollectionRunPartial
	default:
		run.Status = CollectionRunFailed
	}
	return run
}
