package audit

import (
	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
)

// Service names
const (
	ServiceListEntries = "list-entries"
)

// DefaultListLimit caps a listing when the caller gives no limit.
const DefaultListLimit = 100

// ListEntriesRequest asks for the most recent audit entries.
type ListEntriesRequest struct {
	Actor access.Principal `json:"actor"`
	Limit int              `json:"limit,omitempty"`
}

// ListEntriesResponse carries entries newest first.
type ListEntriesResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	apperr.Fault
}
