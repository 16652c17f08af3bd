package store

import (
	"github.com/mcclellann/fredAdvance/pkg/date"
	"github.com/mcclellann/fredAdvance/pkg/models"
)

// Storage defines the interface for database operations on the event log and
// balance snapshots. Events are append-only: there is no update or delete.
type Storage interface {
	// CreateEvent appends one event and sets its ID.
	CreateEvent(event *models.Event) error
	// CreateEvents appends a batch atomically, setting each ID.
	CreateEvents(events []*models.Event) error
	// ListEvents returns every event ordered by date, then ID.
	ListEvents() ([]*models.Event, error)
	// ListEventsUpTo is ListEvents restricted to events dated on or before end.
	ListEventsUpTo(end date.Date) ([]*models.Event, error)

	CreateSnapshot(snapshot *models.Snapshot) error
	ListSnapshots() ([]*models.Snapshot, error)

	Close() error
}
