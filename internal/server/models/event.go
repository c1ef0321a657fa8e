package models

import "time"

// Lifecycle event types, one per mutating operation.
const (
	EventDocumentCreated = "DocumentCreated"
	EventDocumentUpdated = "DocumentUpdated"
	EventAccessGranted   = "AccessGranted"
)

// Event is one row of the append-only lifecycle log. Identity is the owner
// for creations, the editor for updates, and the grantee for grants. Name is
// only set on creation events.
type Event struct {
	ID         string
	Type       string
	DocumentID int64
	Identity   string
	Name       string
	RecordedAt time.Time
}
