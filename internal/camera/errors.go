package camera

import "errors"

// Domain errors for the camera package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, camera.ErrDisconnected) {
//	    // device vanished and recovery did not bring it back
//	}
var (
	// ErrNotConnected is returned when an operation requires a live session.
	ErrNotConnected = errors.New("camera: not connected")

	// ErrAlreadyConnected is returned by Connect on a connected camera.
	ErrAlreadyConnected = errors.New("camera: already connected")

	// ErrDisconnected is returned when the device vanished mid-operation
	// and the bounded recovery attempt failed or was declined. The camera
	// is disconnected afterwards and fails fast until reconnected.
	ErrDisconnected = errors.New("camera: disconnected during operation")

	// ErrStreamActive is returned when a capture or a second stream is
	// requested while a stream is active on the camera.
	ErrStreamActive = errors.New("camera: stream active")

	// ErrBusy is returned when an operation arrives while a capture or
	// recovery is in flight. Callers serialise operations per camera.
	ErrBusy = errors.New("camera: operation in progress")

	// ErrStreamStopped is returned by Next on a stopped stream.
	ErrStreamStopped = errors.New("camera: stream stopped")

	// ErrCameraNotFound is returned by registry and controller lookups
	// with no match. Lookup errors are caller bugs and are never retried.
	ErrCameraNotFound = errors.New("camera: not found")

	// ErrCameraExists is returned when registering a controller camera
	// under a name already taken without asking for replacement.
	ErrCameraExists = errors.New("camera: name already registered")
)
