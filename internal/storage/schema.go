package storage

// Schema is an explicit, versioned allow-list describing exactly which
// fields of an entity round-trip through the adapter. Anything outside the
// list is dropped on save, so the lossiness is declared here rather than
// scattered across callers.
type Schema struct {
	Name    string
	Version int
	Fields  []string
}

var (
	// IdentitySummarySchema is what persists under the currentUser key:
	// just enough to render the header and sidebar.
	IdentitySummarySchema = Schema{
		Name:    "identity_summary",
		Version: 1,
		Fields:  []string{"id", "firstName", "lastName", "image", "username", "email"},
	}

	// ProfileSchema is the summary plus the editable profile fields; it
	// persists under userProfile_{id}.
	ProfileSchema = Schema{
		Name:    "profile",
		Version: 1,
		Fields: []string{
			"id", "firstName", "lastName", "image", "username", "email",
			"phone", "birthDate", "gender", "lastUpdated",
		},
	}
)

// Apply returns a copy of payload restricted to the schema's fields. Fields
// absent from the payload stay absent.
func (s Schema) Apply(payload map[string]any) map[string]any {
	filtered := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		if value, ok := payload[field]; ok {
			filtered[field] = value
		}
	}
	return filtered
}

// Allows reports whether the schema retains the given field.
func (s Schema) Allows(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}
