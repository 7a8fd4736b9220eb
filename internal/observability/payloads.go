package observability

// eventEnvelope carries the fields shared by every published event.
type eventEnvelope struct {
	Event      string `json:"event"`
	CameraID   int    `json:"camera_id"`
	CameraName string `json:"camera_name"`
	SessionTag string `json:"session_tag,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type connectPayload struct {
	eventEnvelope
	Model string `json:"model"`
}

type capturePayload struct {
	eventEnvelope
	ExposureUs int64   `json:"exposure_us"`
	Gain       int     `json:"gain"`
	Bytes      int     `json:"bytes"`
	DurationMs float64 `json:"duration_ms"`
	Overlay    bool    `json:"overlay"`
}

type streamFramePayload struct {
	eventEnvelope
	Sequence uint64 `json:"sequence"`
	Bytes    int    `json:"bytes"`
}

type recoveryPayload struct {
	eventEnvelope
	Recovered bool `json:"recovered"`
}

type errorPayload struct {
	eventEnvelope
	Op    string `json:"op"`
	Error string `json:"error"`
}

type syncCapturePayload struct {
	Timestamp     string  `json:"timestamp"`
	Primary       string  `json:"primary"`
	Secondary     string  `json:"secondary"`
	DelayUs       int64   `json:"delay_us"`
	TimingErrorMs float64 `json:"timing_error_ms"`
	Quality       string  `json:"quality"`
}
