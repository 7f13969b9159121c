package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/harman-health/portalctl/internal/authz"
)

// TagList is the sentinel identifier tagging a resource kind's cached
// collection.
const TagList = "LIST"

// Tag labels cached data with a resource identity. Invalidating a tag
// marks everything carrying it stale. A Tag with ID == TagList covers
// the kind's list result; it doubles as the cache key type.
type Tag struct {
	Kind string
	ID   string
}

// Action is a resource sub-operation beyond plain CRUD, e.g. patient
// merge or HL7 ingest. Path builds the request path from positional
// identifiers; Invalidates lists the tags a successful call marks stale.
type Action struct {
	Method      string
	Path        func(ids ...string) string
	Invalidates func(ids ...string) []Tag
}

// Resource declares one resource kind: its cache tag name, URL prefix,
// CLI-facing kind name (also the permission-map entity), and any
// sub-actions.
type Resource struct {
	Kind     string
	Tag      string
	BasePath string
	Actions  map[string]Action
}

// ListPath returns the collection path (also used for create).
func (r Resource) ListPath() string { return r.BasePath }

// ItemPath returns the path for a single identified item.
func (r Resource) ItemPath(id string) string { return r.BasePath + id + "/" }

// ReadRequirement is the gate requirement for viewing this resource.
func (r Resource) ReadRequirement() authz.Requirement {
	return authz.Requirement{Permission: &authz.Permission{Entity: r.Kind, Action: "read"}}
}

// WriteRequirement is the gate requirement for mutating this resource.
func (r Resource) WriteRequirement() authz.Requirement {
	return authz.Requirement{Permission: &authz.Permission{Entity: r.Kind, Action: "write"}}
}

// Registry is the declarative table mapping resource kinds to endpoints
// and cache tags. One generic executor serves every kind; adding a kind
// is a table entry, not new code.
type Registry struct {
	resources map[string]Resource
}

// NewRegistry returns the portal's full resource table.
func NewRegistry() *Registry {
	reg := &Registry{resources: make(map[string]Resource)}
	for _, r := range defaultResources() {
		reg.resources[r.Kind] = r
	}
	return reg
}

// Resource looks up a resource kind.
func (reg *Registry) Resource(kind string) (Resource, error) {
	r, ok := reg.resources[kind]
	if !ok {
		return Resource{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	return r, nil
}

// Kinds returns all registered kinds, sorted.
func (reg *Registry) Kinds() []string {
	kinds := make([]string, 0, len(reg.resources))
	for k := range reg.resources {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func defaultResources() []Resource {
	return []Resource{
		{
			Kind: "patients", Tag: "Patient", BasePath: "v1/patients/",
			Actions: map[string]Action{
				"search": {
					Method: http.MethodGet,
					Path:   func(ids ...string) string { return "v1/patients/search/" },
				},
				"merge": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "v1/patients/" + ids[0] + "/merge/" + ids[1] + "/" },
					Invalidates: func(ids ...string) []Tag {
						return []Tag{{Kind: "Patient", ID: TagList}}
					},
				},
				"export": {
					Method: http.MethodGet,
					Path:   func(ids ...string) string { return "v1/patients/" + ids[0] + "/export/" },
				},
			},
		},
		{
			Kind: "appointments", Tag: "Appointment", BasePath: "v1/appointments/",
			Actions: map[string]Action{
				"availability": {
					Method: http.MethodGet,
					Path:   func(ids ...string) string { return "v1/appointments/availability/" },
				},
				"join-waitlist": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "v1/appointments/" + ids[0] + "/waitlist/" },
					Invalidates: func(ids ...string) []Tag {
						return []Tag{{Kind: "Waitlist", ID: TagList}}
					},
				},
			},
		},
		{Kind: "waitlist", Tag: "Waitlist", BasePath: "v1/waitlist/"},
		{
			Kind: "observations", Tag: "Observation", BasePath: "v1/observations/",
			Actions: map[string]Action{
				"trends": {
					Method: http.MethodGet,
					Path:   func(ids ...string) string { return "v1/observations/" + ids[0] + "/trends/" },
				},
				"configure-alerts": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "v1/observations/alerts/configure/" },
				},
			},
		},
		{Kind: "telemedicine-sessions", Tag: "TelemedicineSession", BasePath: "v1/telemedicine/sessions/"},
		{Kind: "telemedicine-consents", Tag: "TelemedicineConsent", BasePath: "v1/telemedicine/consents/"},
		{Kind: "telemedicine-metrics", Tag: "TelemedicineMetric", BasePath: "v1/telemedicine/metrics/"},
		{Kind: "notifications", Tag: "Notification", BasePath: "v1/notifications/"},
		{Kind: "notification-templates", Tag: "NotificationTemplate", BasePath: "v1/notifications/templates/"},
		{Kind: "notification-campaigns", Tag: "NotificationCampaign", BasePath: "v1/notifications/campaigns/"},
		{Kind: "risk-scores", Tag: "RiskScore", BasePath: "v1/analytics/risk-scores/"},
		{Kind: "training-jobs", Tag: "TrainingJob", BasePath: "v1/analytics/training-jobs/"},
		{Kind: "model-versions", Tag: "ModelVersion", BasePath: "v1/analytics/model-versions/"},
		{Kind: "alerts", Tag: "PersonalizedAlert", BasePath: "v1/analytics/alerts/"},
		{Kind: "audit-events", Tag: "AuditEvent", BasePath: "v1/audit/events/"},
		{Kind: "audit-exports", Tag: "AuditExport", BasePath: "v1/audit/exports/"},
		{Kind: "audit-anomalies", Tag: "AuditAnomaly", BasePath: "v1/audit/anomalies/"},
		{
			Kind: "hl7-messages", Tag: "HL7", BasePath: "v1/hl7-parser/",
			Actions: map[string]Action{
				"ingest": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "v1/hl7-parser/ingest/" },
					Invalidates: func(ids ...string) []Tag {
						return []Tag{{Kind: "HL7", ID: TagList}}
					},
				},
				"parse-status": {
					Method: http.MethodGet,
					Path:   func(ids ...string) string { return "v1/hl7-parser/parse-status/" + ids[0] + "/" },
				},
				"batch": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "v1/hl7-parser/batch/" },
					Invalidates: func(ids ...string) []Tag {
						return []Tag{{Kind: "HL7", ID: TagList}}
					},
				},
			},
		},
		{Kind: "roles", Tag: "Role", BasePath: "v1/admin/roles/"},
		{
			Kind: "users", Tag: "User", BasePath: "v1/admin/users/",
			Actions: map[string]Action{
				"assign-role": {
					Method: http.MethodPost,
					Path:   func(ids ...string) string { return "admin/users/assign-role/" },
					Invalidates: func(ids ...string) []Tag {
						return []Tag{
							{Kind: "User", ID: TagList},
							{Kind: "Role", ID: TagList},
						}
					},
				},
			},
		},
	}
}

// NormalizeList coerces a list payload into a bare ordered sequence of
// items. The backend returns either a JSON array or an envelope
// {"results": [...]}; anything else normalizes to an empty sequence.
func NormalizeList(body []byte) []map[string]any {
	var items []map[string]any
	if err := json.Unmarshal(body, &items); err == nil && items != nil {
		return items
	}

	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Results != nil {
		return envelope.Results
	}
	return []map[string]any{}
}

// ItemID extracts an item's identity for cache tagging. Numeric IDs are
// rendered without an exponent or trailing zeros.
func ItemID(item map[string]any) string {
	switch v := item["id"].(type) {
	case string:
		return v
	case float64:
		return formatID(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func formatID(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
