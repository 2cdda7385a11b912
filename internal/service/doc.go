package service

// Package service turns a validated configuration into invocations and
// delivers the captured output.
//
// Overview
// A Service owns one invoke.Request built from the configuration and a
// list of Uploaders. Once runs the command a single time. Do runs the
// serve loop: a gocron schedule (cron expression or fixed interval)
// pokes the loop and the loop runs the command, strictly one process at
// a time. A tick that fires while a run is still in flight is dropped
// with a warning, never queued.
//
// Data flow:
//
//   scheduler tick            Service loop                 invoke.Run
//       |                        |                             |
//       | ticks <- struct{}{} -->|                             |
//       |                        | Once() -------------------->| child process
//       |                        |<------ Result --------------|
//       |                        | deliver(Output) -> uploaders
//
// Delivery happens only for a clean exit with captured output. The
// joined lines go to every uploader: stdout by default, a directory of
// timestamped files, or an HTTP collector, as configured.
//
// Invariants:
//   - At most one child process at a time, runs never overlap.
//   - A non-zero exit is logged and skipped, not an error.
//   - Uploader failures never stop the loop, only Once reports them.
//   - Closing uploaders happens once, when Do returns.
//
// internal/service/service_test.go is the best source about how to
// properly use the Service struct.
