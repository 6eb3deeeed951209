// Package notify publishes scan lifecycle events to interested
// subscribers. The pipeline publishes on the transition to PROCESSING
// and on every terminal status; transports are pluggable behind the
// Notifier interface.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

// Event is a scan status-change notification.
type Event struct {
	ScanID  uuid.UUID   `json:"scan_id"`
	Status  scan.Status `json:"status"`
	Payload any         `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

// StatusEvent builds the standard status-change event for a scan record.
func StatusEvent(result *scan.Result) Event {
	return Event{
		ScanID: result.ID,
		Status: result.Status,
		Time:   time.Now().UTC(),
	}
}

// Notifier delivers scan events. Implementations must be safe for
// concurrent use; Publish never blocks scan processing.
type Notifier interface {
	Publish(event Event)
}

// Nop discards all events. It is the default when no subscriber
// transport is configured.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(Event) {}
