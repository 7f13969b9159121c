package sandbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/harman-health/portalctl/internal/api"
)

// collectionPaths returns every resource base path the sandbox serves,
// taken from the client's resource table so the two stay in lockstep.
func collectionPaths() []string {
	reg := api.NewRegistry()
	paths := make([]string, 0, len(reg.Kinds()))
	for _, kind := range reg.Kinds() {
		r, err := reg.Resource(kind)
		if err != nil {
			continue
		}
		paths = append(paths, r.BasePath)
	}
	return paths
}

// seed populates accounts and synthetic clinical data. IDs are random
// per process; nothing here is a real patient.
func (s *Server) seed() {
	admin := map[string]any{
		"id":    uuid.NewString(),
		"email": "admin@harman.health",
		"name":  "Portal Admin",
		"roles": []any{"ADMIN"},
		"permissions": map[string]any{
			"*": []any{"*"},
		},
	}
	staff := map[string]any{
		"id":    uuid.NewString(),
		"email": "staff@harman.health",
		"name":  "Front Desk",
		"roles": []any{"STAFF"},
		"permissions": map[string]any{
			"patients":     []any{"read"},
			"appointments": []any{"read", "write"},
		},
	}
	s.accounts["admin@harman.health"] = &account{password: "admin", profile: admin}
	s.accounts["staff@harman.health"] = &account{password: "staff", profile: staff}
	s.collections["v1/admin/users/"] = []map[string]any{admin, staff}

	patients := []map[string]any{
		{"id": uuid.NewString(), "name": "Ada Lovelace", "mrn": "MRN-1001", "status": "active"},
		{"id": uuid.NewString(), "name": "Grace Hopper", "mrn": "MRN-1002", "status": "active"},
		{"id": uuid.NewString(), "name": "Alan Turing", "mrn": "MRN-1003", "status": "inactive"},
	}
	s.collections["v1/patients/"] = patients

	now := time.Now()
	s.collections["v1/appointments/"] = []map[string]any{
		{
			"id":      uuid.NewString(),
			"patient": patients[0]["id"],
			"start":   now.Add(24 * time.Hour).Format(time.RFC3339),
			"status":  "scheduled",
		},
		{
			"id":      uuid.NewString(),
			"patient": patients[1]["id"],
			"start":   now.Add(48 * time.Hour).Format(time.RFC3339),
			"status":  "scheduled",
		},
	}

	s.collections["v1/observations/"] = []map[string]any{
		{"id": uuid.NewString(), "patient": patients[0]["id"], "code": "8867-4", "value": 72.0, "unit": "bpm"},
		{"id": uuid.NewString(), "patient": patients[0]["id"], "code": "8480-6", "value": 120.0, "unit": "mmHg"},
		{"id": uuid.NewString(), "patient": patients[1]["id"], "code": "8867-4", "value": 68.0, "unit": "bpm"},
	}

	s.collections["v1/admin/roles/"] = []map[string]any{
		{"id": uuid.NewString(), "name": "ADMIN"},
		{"id": uuid.NewString(), "name": "STAFF"},
		{"id": uuid.NewString(), "name": "CLINICIAN"},
	}

	s.collections["v1/notifications/"] = []map[string]any{
		{"id": uuid.NewString(), "subject": "Appointment reminder", "status": "sent"},
	}

	s.collections["v1/audit/events/"] = []map[string]any{
		{"id": uuid.NewString(), "actor": "admin@harman.health", "action": "login", "at": now.Format(time.RFC3339)},
	}
}
