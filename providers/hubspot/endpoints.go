package hubspot

import (
	"github.com/goliatone/go-crm-items/core"
)

// Engagement type tags returned by the legacy engagements API.
const (
	EngagementCall    = "CALL"
	EngagementEmail   = "EMAIL"
	EngagementMeeting = "MEETING"
	EngagementNote    = "NOTE"
	EngagementTask    = "TASK"
)

func endpoint(name string, path string, properties []string, objectTypes ...string) core.EndpointMapping {
	return core.EndpointMapping{
		Name:         name,
		EndpointPath: path,
		ObjectTypes:  core.NewObjectTypes(objectTypes...),
		Properties:   properties,
	}
}

// DefaultEndpoints lists the HubSpot collections this module knows how to
// page through.
func DefaultEndpoints() []core.EndpointMapping {
	return []core.EndpointMapping{
		endpoint("carts", "/crm/v3/objects/carts",
			[]string{"name", "createdate", "lastmodifieddate", "hs_cart_status"}, "cart"),
		endpoint("contacts", "/crm/v3/objects/contacts",
			[]string{"createdate", "lastmodifieddate", "email", "firstname", "lastname", "phone", "website", "hs_object_id"}, "contact"),
		endpoint("companies", "/crm/v3/objects/companies",
			[]string{"name", "domain", "industry", "city", "state", "country", "phone", "numberofemployees", "annualrevenue", "createdate", "lastmodifieddate"}, "company"),
		endpoint("deals", "/crm/v3/objects/deals",
			[]string{"dealname", "amount", "dealstage", "pipeline", "closedate", "createdate", "lastmodifieddate", "dealtype", "description"}, "deal"),
		endpoint("discounts", "/crm/v3/objects/discounts",
			[]string{"name", "amount", "createdate", "lastmodifieddate"}, "discount"),
		endpoint("fees", "/crm/v3/objects/fees",
			[]string{"name", "amount", "createdate", "lastmodifieddate"}, "fee"),
		endpoint("goals", "/crm/v3/objects/goal_targets",
			[]string{"name", "description", "goal_type", "createdate", "lastmodifieddate"}, "goal"),
		endpoint("invoices", "/crm/v3/objects/invoices",
			[]string{"name", "amount", "status", "createdate", "lastmodifieddate", "hs_invoice_number"}, "invoice"),
		endpoint("payments", "/crm/v3/objects/payments",
			[]string{"name", "amount", "status", "createdate", "lastmodifieddate", "hs_payment_method"}, "payment"),
		endpoint("quotes", "/crm/v3/objects/quotes",
			[]string{"name", "amount", "status", "createdate", "lastmodifieddate", "hs_quote_number"}, "quote"),
		endpoint("products", "/crm/v3/objects/products",
			[]string{"name", "description", "price", "createdate", "lastmodifieddate", "hs_sku"}, "product"),
		endpoint("orders", "/crm/v3/objects/orders",
			[]string{"name", "amount", "status", "createdate", "lastmodifieddate", "hs_order_number"}, "order"),
		endpoint("engagements", "/engagements/v1/engagements/paged",
			[]string{"hs_activity_type", "hs_body_preview", "createdate", "lastmodifieddate", "hubspot_owner_id"},
			EngagementCall, EngagementEmail, EngagementMeeting, EngagementNote, EngagementTask),
		endpoint("tickets", "/crm/v3/objects/tickets",
			[]string{"subject", "content", "hs_ticket_priority", "hs_ticket_status", "createdate", "lastmodifieddate"}, "ticket"),
	}
}

// EndpointTable returns the default table with configured endpoints layered
// on top. Configured entries replace defaults of the same name.
func EndpointTable(overrides ...core.EndpointConfig) core.EndpointTable {
	table := core.NewEndpointTable(DefaultEndpoints()...)
	if len(overrides) == 0 {
		return table
	}
	mappings := make([]core.EndpointMapping, 0, len(overrides))
	for _, override := range overrides {
		mappings = append(mappings, override.Mapping())
	}
	return table.With(mappings...)
}
