package history

import (
	"context"
	"time"
)

// Event type values. These match the event names published on MQTT.
const (
	EventConnect     = "connect"
	EventDisconnect  = "disconnect"
	EventCapture     = "capture"
	EventStreamFrame = "stream_frame"
	EventRecovery    = "recovery"
	EventError       = "error"
)

// Detail is the JSON payload attached to an event entry.
type Detail map[string]any

// Entry represents a single camera event record.
//
// Each entry stores a JSON snapshot of the event details at the time it
// was observed. This provides a local audit trail even when the
// time-series database is unavailable.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// CameraID is the physical camera identifier.
	CameraID int `json:"camera_id"`

	// CameraName is the friendly camera name at the time of the event.
	CameraName string `json:"camera_name"`

	// Event identifies the event type (connect, capture, recovery...).
	Event string `json:"event"`

	// Detail is the JSON snapshot of event-specific fields.
	Detail Detail `json:"detail"`

	// CreatedAt is the timestamp of the event (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves camera event history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record persists one camera event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - cameraID: Physical camera identifier
	//   - cameraName: Friendly camera name
	//   - event: Event type (connect, capture, recovery...)
	//   - detail: Event-specific fields (may be nil)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, cameraID int, cameraName, event string, detail Detail) error

	// Recent returns recent events for a camera, ordered newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - cameraID: Physical camera identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []Entry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	Recent(ctx context.Context, cameraID int, limit int) ([]Entry, error)
}
