// Package twin is a simulated camera backend implementing the driver
// contract without hardware.
//
// The twin powers development and the entire automated test suite: it
// honours the same control descriptors, validation failures, and exposure
// bounds as a real backend, so code exercising the driver protocol cannot
// tell the difference by observable behaviour.
//
// # Image sources
//
//   - SourceSynthetic: generated grid/crosshair test pattern with
//     gain-scaled sensor noise (the default)
//   - SourceFile: one image file replayed on every exposure
//   - SourceDirectory: files of a directory served round-robin in sorted
//     order, optionally watched with fsnotify so newly dropped frames
//     join the cycle
//
// File and directory frames are resized to the simulated sensor's
// resolution. A missing or unreadable source falls back to the synthetic
// pattern rather than failing the exposure.
//
// # Defaults
//
// Two cameras are simulated out of the box: a wide-field finder
// (1280x960) and a main imaging camera (1920x1080), with the control
// table of a typical ASI-class sensor.
//
//	drv := twin.New(twin.Config{})
//	sess, _ := drv.Open(0)
//	jpeg, _ := sess.Expose(ctx, 100_000)
package twin
