// Package driver defines the capability contract between the camera core
// and a camera backend.
//
// A backend is anything that can enumerate cameras and open exclusive
// sessions on them: the digital twin in this repository, or an external
// vendor SDK binding. Nothing above this package knows which one it is
// talking to.
//
// # Contracts
//
//   - Driver: discovery and session creation (Enumerate, Open)
//   - Session: one opened camera (Describe, ListControls, SetControl,
//     GetControl, Expose, AbortExposure, Close)
//
// # Error taxonomy
//
// Backends must signal failures through the sentinel errors in this
// package (wrapped with %w) so callers can discriminate with errors.Is:
// unknown device, unknown control, out-of-range value, read-only control,
// exposure outside sanity bounds, device gone, encode failure. The camera
// layer keys its recovery decisions off ErrDeviceGone; everything else is
// treated as a validation failure and never triggers recovery.
//
// # Usage
//
//	sess, err := drv.Open(0)
//	if err != nil { ... }
//	defer sess.Close()
//
//	identity, _ := sess.Describe()
//	data, err := sess.Expose(ctx, 100_000)
package driver
