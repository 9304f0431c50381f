// Package process provides subprocess lifecycle management for the
// external tools the node drives (ffmpeg, ffprobe, vspipe).
//
// Handle wraps a single spawned process:
//   - Graceful stop: an application-level quit token on stdin first,
//     then SIGTERM, each with a bounded wait
//   - Force kill with SIGKILL, tolerant of already-exited processes
//   - Non-blocking liveness checks that reap zombie state
//   - Stderr line streaming with pluggable parsing and a bounded tail
//     retained for crash reports
//
// A Handle owns its process exclusively. Stdout can be redirected into
// another Handle's stdin, which is how the restore pipeline connects
// the frame generator to the encoder.
package process
