package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/argusobs/telescope-core/internal/camera"
	"github.com/argusobs/telescope-core/internal/history"
	"github.com/argusobs/telescope-core/internal/infrastructure/mqtt"
)

// historyWriteTimeout bounds the SQLite insert performed on the event path.
const historyWriteTimeout = 2 * time.Second

// Publisher is the subset of the MQTT client the recorder uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Topics() mqtt.Topics
	IsConnected() bool
}

// Metrics is the subset of the InfluxDB client the recorder uses.
type Metrics interface {
	WriteCaptureMetric(cameraID int, cameraName string, exposureUs int64, gain int, bytes int, duration time.Duration)
	WriteCameraStateMetric(cameraID int, state string, recovered bool)
	WriteSyncCaptureMetric(timingErrorMs float64, delayUs int64, quality string)
}

// Logger is the logging interface the recorder uses.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures which sinks a Recorder writes to. Any sink may be
// nil; events flow to whichever sinks are present.
type Options struct {
	Logger  Logger
	MQTT    Publisher
	Metrics Metrics
	Events  history.Repository

	// QoS is the MQTT quality of service for event publishes.
	QoS byte
}

// Recorder fans camera events out to the configured sinks: structured
// logs, MQTT event topics, InfluxDB metrics and the SQLite event log.
//
// Install it on a camera with cam.SetHooks(rec.CameraHooks()). Sink
// failures are logged and never propagate back into the capture path.
type Recorder struct {
	logger  Logger
	mqtt    Publisher
	metrics Metrics
	events  history.Repository
	qos     byte
}

// New creates a Recorder writing to the sinks in opts.
func New(opts Options) *Recorder {
	r := &Recorder{
		logger:  opts.Logger,
		mqtt:    opts.MQTT,
		metrics: opts.Metrics,
		events:  opts.Events,
		qos:     opts.QoS,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// CameraHooks returns hooks that route camera events through this recorder.
func (r *Recorder) CameraHooks() camera.Hooks {
	return camera.Hooks{
		OnConnect:     r.onConnect,
		OnDisconnect:  r.onDisconnect,
		OnCapture:     r.onCapture,
		OnStreamFrame: r.onStreamFrame,
		OnRecovery:    r.onRecovery,
		OnError:       r.onError,
	}
}

func (r *Recorder) onConnect(ev camera.ConnectEvent) {
	r.logger.Info("camera connected",
		"camera_id", ev.CameraID,
		"camera_name", ev.CameraName,
		"model", ev.Identity.Name,
	)

	detail := history.Detail{"model": ev.Identity.Name}
	r.record(ev.EventInfo, history.EventConnect, detail)
	r.publish(ev.CameraID, history.EventConnect, connectPayload{
		eventEnvelope: envelope(ev.EventInfo, history.EventConnect),
		Model:         ev.Identity.Name,
	})
	if r.metrics != nil {
		r.metrics.WriteCameraStateMetric(ev.CameraID, "connected", false)
	}
}

func (r *Recorder) onDisconnect(ev camera.DisconnectEvent) {
	r.logger.Info("camera disconnected",
		"camera_id", ev.CameraID,
		"camera_name", ev.CameraName,
	)

	r.record(ev.EventInfo, history.EventDisconnect, nil)
	r.publish(ev.CameraID, history.EventDisconnect, envelope(ev.EventInfo, history.EventDisconnect))
	if r.metrics != nil {
		r.metrics.WriteCameraStateMetric(ev.CameraID, "disconnected", false)
	}
}

func (r *Recorder) onCapture(ev camera.CaptureEvent) {
	r.logger.Debug("frame captured",
		"camera_id", ev.CameraID,
		"exposure_us", ev.ExposureUs,
		"gain", ev.Gain,
		"bytes", ev.Bytes,
		"duration_ms", float64(ev.Duration)/float64(time.Millisecond),
	)

	detail := history.Detail{
		"exposure_us": ev.ExposureUs,
		"gain":        ev.Gain,
		"bytes":       ev.Bytes,
		"overlay":     ev.OverlayApplied,
	}
	r.record(ev.EventInfo, history.EventCapture, detail)
	r.publish(ev.CameraID, history.EventCapture, capturePayload{
		eventEnvelope: envelope(ev.EventInfo, history.EventCapture),
		ExposureUs:    ev.ExposureUs,
		Gain:          ev.Gain,
		Bytes:         ev.Bytes,
		DurationMs:    float64(ev.Duration) / float64(time.Millisecond),
		Overlay:       ev.OverlayApplied,
	})
	if r.metrics != nil {
		r.metrics.WriteCaptureMetric(ev.CameraID, ev.CameraName, ev.ExposureUs, ev.Gain, ev.Bytes, ev.Duration)
	}
}

func (r *Recorder) onStreamFrame(ev camera.StreamFrameEvent) {
	// Per-frame stream events skip the SQLite log; at streaming rates
	// the event table would grow without bound.
	r.publish(ev.CameraID, history.EventStreamFrame, streamFramePayload{
		eventEnvelope: envelope(ev.EventInfo, history.EventStreamFrame),
		Sequence:      ev.Sequence,
		Bytes:         ev.Bytes,
	})
}

func (r *Recorder) onRecovery(ev camera.RecoveryEvent) {
	if ev.Recovered {
		r.logger.Info("camera recovered",
			"camera_id", ev.CameraID,
			"camera_name", ev.CameraName,
		)
	} else {
		r.logger.Warn("camera recovery failed",
			"camera_id", ev.CameraID,
			"camera_name", ev.CameraName,
		)
	}

	detail := history.Detail{"recovered": ev.Recovered}
	r.record(ev.EventInfo, history.EventRecovery, detail)
	r.publish(ev.CameraID, history.EventRecovery, recoveryPayload{
		eventEnvelope: envelope(ev.EventInfo, history.EventRecovery),
		Recovered:     ev.Recovered,
	})
	if r.metrics != nil {
		r.metrics.WriteCameraStateMetric(ev.CameraID, "recovering", ev.Recovered)
	}
}

func (r *Recorder) onError(ev camera.ErrorEvent) {
	r.logger.Error("camera operation failed",
		"camera_id", ev.CameraID,
		"camera_name", ev.CameraName,
		"op", ev.Op,
		"error", ev.Err,
	)

	detail := history.Detail{"op": ev.Op, "error": ev.Err.Error()}
	r.record(ev.EventInfo, history.EventError, detail)
	r.publish(ev.CameraID, history.EventError, errorPayload{
		eventEnvelope: envelope(ev.EventInfo, history.EventError),
		Op:            ev.Op,
		Error:         ev.Err.Error(),
	})
}

// RecordSyncCapture publishes and records the outcome of one
// synchronized dual-camera capture.
func (r *Recorder) RecordSyncCapture(result *camera.SyncCaptureResult) {
	if result == nil {
		return
	}

	timingErrorMs := result.TimingErrorMs()
	quality := result.TimingQuality()

	r.logger.Info("sync capture completed",
		"primary", result.Primary.Name,
		"secondary", result.Secondary.Name,
		"delay_us", result.DelayUs,
		"timing_error_ms", timingErrorMs,
		"quality", quality,
	)

	if r.metrics != nil {
		r.metrics.WriteSyncCaptureMetric(timingErrorMs, result.DelayUs, quality)
	}

	if r.mqtt != nil && r.mqtt.IsConnected() {
		payload := syncCapturePayload{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Primary:       result.Primary.Name,
			Secondary:     result.Secondary.Name,
			DelayUs:       result.DelayUs,
			TimingErrorMs: timingErrorMs,
			Quality:       quality,
		}
		r.publishJSON(r.mqtt.Topics().ControllerSyncCapture(), payload)
	}
}

// record writes an event row, bounded by historyWriteTimeout. An active
// session tag rides along in the detail so history queries can group
// rows by observing run.
func (r *Recorder) record(info camera.EventInfo, event string, detail history.Detail) {
	if r.events == nil {
		return
	}
	if info.SessionTag != "" {
		if detail == nil {
			detail = history.Detail{}
		}
		detail["session_tag"] = info.SessionTag
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := r.events.Record(ctx, info.CameraID, info.CameraName, event, detail); err != nil {
		r.logger.Warn("recording camera event failed",
			"camera_id", info.CameraID,
			"event", event,
			"error", err,
		)
	}
}

// publish sends an event payload to the camera's event topic.
func (r *Recorder) publish(cameraID int, event string, payload any) {
	if r.mqtt == nil || !r.mqtt.IsConnected() {
		return
	}
	r.publishJSON(r.mqtt.Topics().CameraEvent(cameraID, event), payload)
}

func (r *Recorder) publishJSON(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("marshalling event payload failed", "topic", topic, "error", err)
		return
	}
	if err := r.mqtt.Publish(topic, data, r.qos, false); err != nil {
		r.logger.Warn("publishing event failed", "topic", topic, "error", err)
	}
}

// envelope builds the shared payload fields from an event.
func envelope(info camera.EventInfo, event string) eventEnvelope {
	return eventEnvelope{
		Event:      event,
		CameraID:   info.CameraID,
		CameraName: info.CameraName,
		SessionTag: info.SessionTag,
		Timestamp:  info.Timestamp.UTC().Format(time.RFC3339),
	}
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
