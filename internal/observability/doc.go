// Package observability routes camera events to their sinks.
//
// The camera package knows nothing about MQTT, InfluxDB or SQLite; it
// fires typed hook callbacks. The Recorder here implements those hooks
// and fans each event out to whichever sinks are configured:
//
//   - structured logs (always)
//   - MQTT event topics ({prefix}/camera/{id}/event/{event})
//   - InfluxDB measurements for dashboards
//   - the SQLite camera_events audit log
//
// Sink failures are logged and swallowed; a down broker or full disk
// never fails a capture.
//
// Usage:
//
//	rec := observability.New(observability.Options{
//	    Logger:  log,
//	    MQTT:    mqttClient,
//	    Metrics: influxClient,
//	    Events:  historyRepo,
//	    QoS:     byte(cfg.MQTT.QoS),
//	})
//	registry.SetConfigure(func(cam *camera.Camera) {
//	    cam.SetHooks(rec.CameraHooks())
//	})
package observability
