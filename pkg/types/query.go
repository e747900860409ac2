package types

// Filters narrows the derived view. Zero values mean no constraint.
type Filters struct {
	Status   Status   `json:"status,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Search   string   `json:"search,omitempty"`
}

// SortField names the key a view is ordered by.
type SortField string

// Sort fields.
const (
	SortByTitle     SortField = "title"
	SortByPriority  SortField = "priority"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// SortDirection is asc or desc.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort configures ordering of the derived view.
type Sort struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort shows the newest todos first.
var DefaultSort = Sort{Field: SortByCreatedAt, Direction: SortDesc}

// ParseSortField maps a user-supplied name onto a SortField. It accepts the
// camelCase wire names and their snake_case forms.
func ParseSortField(s string) (SortField, bool) {
	switch s {
	case "title":
		return SortByTitle, true
	case "priority":
		return SortByPriority, true
	case "createdAt", "created_at", "created":
		return SortByCreatedAt, true
	case "updatedAt", "updated_at", "updated":
		return SortByUpdatedAt, true
	}
	return "", false
}
