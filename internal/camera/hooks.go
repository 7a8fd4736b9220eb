package camera

import (
	"time"

	"github.com/argusobs/telescope-core/internal/driver"
)

// EventInfo is the envelope common to every camera event. SessionTag is
// the caller-supplied context identifier set via SetSessionTag, empty
// when no session is attributed.
type EventInfo struct {
	CameraID   int
	CameraName string
	SessionTag string
	Timestamp  time.Time
}

// ConnectEvent fires after a successful Connect.
type ConnectEvent struct {
	EventInfo
	Identity driver.Identity
}

// DisconnectEvent fires after a Disconnect releases the session.
type DisconnectEvent struct {
	EventInfo
}

// CaptureEvent fires after every successful capture, including stream
// frames and sync-capture legs.
type CaptureEvent struct {
	EventInfo
	ExposureUs     int64
	Gain           int
	Bytes          int
	Duration       time.Duration
	OverlayApplied bool
}

// StreamFrameEvent fires for each frame a stream produces.
type StreamFrameEvent struct {
	EventInfo
	Sequence uint64
	Bytes    int
}

// RecoveryEvent fires once per recovery attempt with its outcome.
type RecoveryEvent struct {
	EventInfo
	Recovered bool
}

// ErrorEvent fires when an operation fails. Op names the operation
// ("connect", "capture", "stream", "set_control", "get_control").
type ErrorEvent struct {
	EventInfo
	Op  string
	Err error
}

// Hooks are optional callbacks into the observability sink. Any field
// may be nil. Callbacks run synchronously on the calling goroutine and
// should not block.
type Hooks struct {
	OnConnect     func(ConnectEvent)
	OnDisconnect  func(DisconnectEvent)
	OnCapture     func(CaptureEvent)
	OnStreamFrame func(StreamFrameEvent)
	OnRecovery    func(RecoveryEvent)
	OnError       func(ErrorEvent)
}

func (h Hooks) fireConnect(ev ConnectEvent) {
	if h.OnConnect != nil {
		h.OnConnect(ev)
	}
}

func (h Hooks) fireDisconnect(ev DisconnectEvent) {
	if h.OnDisconnect != nil {
		h.OnDisconnect(ev)
	}
}

func (h Hooks) fireCapture(ev CaptureEvent) {
	if h.OnCapture != nil {
		h.OnCapture(ev)
	}
}

func (h Hooks) fireStreamFrame(ev StreamFrameEvent) {
	if h.OnStreamFrame != nil {
		h.OnStreamFrame(ev)
	}
}

func (h Hooks) fireRecovery(ev RecoveryEvent) {
	if h.OnRecovery != nil {
		h.OnRecovery(ev)
	}
}

func (h Hooks) fireError(ev ErrorEvent) {
	if h.OnError != nil {
		h.OnError(ev)
	}
}
