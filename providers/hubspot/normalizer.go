package hubspot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
)

// Normalizer maps HubSpot CRM records into integration items. It never
// fails: fields it cannot read are left null.
type Normalizer struct{}

func NewNormalizer() Normalizer {
	return Normalizer{}
}

func (Normalizer) Normalize(raw core.RawRecord, types core.ObjectTypes, baseURL string) core.IntegrationItem {
	engagement := mapValue(raw, "engagement")
	properties := mapValue(raw, "properties")

	id := stringValue(raw["id"])
	if id == "" {
		id = stringValue(engagement["id"])
	}

	createdAt := timeValue(raw["createdAt"])
	if createdAt == nil {
		createdAt = timeValue(engagement["createdAt"])
	}
	updatedAt := timeValue(raw["updatedAt"])
	if updatedAt == nil {
		updatedAt = timeValue(engagement["lastUpdated"])
	}

	itemType := resolveType(raw, engagement, properties, types)

	item := core.IntegrationItem{
		ID:               optional(id),
		Name:             optional(displayName(itemType, properties)),
		Type:             itemType,
		CreationTime:     createdAt,
		LastModifiedTime: updatedAt,
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && id != "" {
		itemURL := baseURL + "/" + id
		item.URL = &itemURL
	}
	return item
}

// resolveType picks the declared tag for a record. Multi-tag collections are
// matched against the record discriminator, falling back to the first tag.
func resolveType(raw core.RawRecord, engagement map[string]any, properties map[string]any, types core.ObjectTypes) string {
	if !types.Multi() {
		return types.Primary()
	}
	candidates := []any{
		engagement["type"],
		properties["hs_engagement_type"],
		properties["hs_activity_type"],
		raw["type"],
	}
	for _, candidate := range candidates {
		if tag, ok := types.Match(stringValue(candidate)); ok {
			return tag
		}
	}
	return types.Primary()
}

func displayName(itemType string, properties map[string]any) string {
	switch strings.ToLower(itemType) {
	case "company":
		if name := stringValue(properties["name"]); name != "" {
			return name
		}
		return stringValue(properties["domain"])
	case "contact":
		return contactName(properties)
	case "deal":
		return stringValue(properties["dealname"])
	case "ticket":
		return stringValue(properties["subject"])
	default:
		return ""
	}
}

func contactName(properties map[string]any) string {
	name := stringValue(properties["firstname"])
	if name != "" {
		if last := stringValue(properties["lastname"]); last != "" {
			name += " " + last
		}
	}
	email := stringValue(properties["email"])
	switch {
	case name != "" && email != "":
		return name + " (" + email + ")"
	case name == "":
		return email
	default:
		return name
	}
}

func mapValue(raw map[string]any, key string) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	value, ok := raw[key].(map[string]any)
	if !ok || value == nil {
		return map[string]any{}
	}
	return value
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return ""
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return ""
	}
}

// timeValue accepts RFC3339 strings and epoch milliseconds.
func timeValue(value any) *time.Time {
	var millis int64
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil
		}
		millis = parsed
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return nil
		}
		millis = parsed
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return nil
		}
		millis = int64(typed)
	case int64:
		millis = typed
	case int:
		millis = int64(typed)
	default:
		return nil
	}
	if millis <= 0 {
		return nil
	}
	parsed := time.UnixMilli(millis).UTC()
	return &parsed
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

var _ core.Normalizer = Normalizer{}
