package influxdb

import "errors"

// Sentinel errors for the metrics client. Match with errors.Is.
var (
	// ErrNotConnected is returned for operations on a closed client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed is returned when the initial connect fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed is returned for synchronous write failures; most
	// write errors arrive asynchronously via the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned when the config section is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
