package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "telescope"

// Topics provides builders for telescope MQTT topics. Using these
// helpers ensures consistent topic naming across the codebase.
//
// All topics use the flat scheme: {prefix}/{category}/{id}/{detail}
//
//	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}
//	eventTopic := topics.CameraEvent(0, "capture")
//	// Returns: "telescope/camera/0/event/capture"
type Topics struct {
	// Prefix is the leading topic segment. Empty means DefaultTopicPrefix.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// CameraEvent returns the topic for one camera's lifecycle and capture
// events. Event names: connect, disconnect, capture, stream_frame,
// recovery, error.
//
// Example: telescope/camera/0/event/capture
func (t Topics) CameraEvent(cameraID int, event string) string {
	return fmt.Sprintf("%s/camera/%d/event/%s", t.prefix(), cameraID, event)
}

// CameraState returns the retained topic carrying a camera's current
// lifecycle state.
//
// Example: telescope/camera/0/state
func (t Topics) CameraState(cameraID int) string {
	return fmt.Sprintf("%s/camera/%d/state", t.prefix(), cameraID)
}

// ControllerSyncCapture returns the topic for synchronized capture
// completion events.
//
// Example: telescope/controller/sync_capture
func (t Topics) ControllerSyncCapture() string {
	return fmt.Sprintf("%s/controller/sync_capture", t.prefix())
}

// SystemStatus returns the retained system status topic, also used for
// the Last Will and Testament.
//
// Example: telescope/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllCameraEvents returns a pattern matching every camera event.
//
// Pattern: telescope/camera/+/event/+
func (t Topics) AllCameraEvents() string {
	return fmt.Sprintf("%s/camera/+/event/+", t.prefix())
}

// AllCameraStates returns a pattern matching every camera state topic.
//
// Pattern: telescope/camera/+/state
func (t Topics) AllCameraStates() string {
	return fmt.Sprintf("%s/camera/+/state", t.prefix())
}

// AllTopics returns a pattern matching every telescope topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: telescope/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}
