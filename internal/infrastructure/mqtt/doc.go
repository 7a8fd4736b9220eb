// Package mqtt publishes telescope events to the observatory broker.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The telescope core uses MQTT as the outbound event bus: camera
// lifecycle events, capture events and sync-capture results are
// published for observatory dashboards and companion services. The
// broker (Mosquitto) decouples the core from its consumers, who
// subscribe with their own clients; this service never subscribes.
//
//	Telescope Core → MQTT Broker → Dashboards / Alerting / Archivers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Publish an event
//	topic := client.Topics().CameraEvent(0, "capture")
//	client.Publish(topic, payload, 1, false)
package mqtt
