// Package invoke launches one OS process per invocation and mediates
// its standard streams under structured concurrency.
//
// # Overview
//
// A Request names the program plus a policy per stream: an Input for
// stdin and a Sink for stdout and stderr each. Run resolves the
// policies into os/exec redirections, starts the process, then drives
// one pump goroutine per wired stream. Pumps decode bytes into lines
// lazily and deliver them while the process is still running. Their
// failures join into a single invocation error, but never cancel each
// other, so no stream is abandoned half drained.
//
// Data flow:
//
//	Run(ctx, Request)         session                  pumps
//	    |                        |                       |
//	    | validate               |                       |
//	    |----------------------->| resolve sinks/input   |
//	    |                        | exec.Cmd.Start        |
//	    |                        | go pump ...---------->| stdin writer
//	    |                        |                       | capture lines
//	    |                        |                       | consume lines
//	    |                        | group.Wait (drain)    |
//	    |                        | cmd.Wait              |
//	    |<------- *Result -------|                       |
//
// Invariants:
//   - Every pump is joined before the exit-wait. Waiting first races
//     the pumps and can truncate output or wedge the child on a full
//     pipe buffer.
//   - Capture lines arrive in production order. With stdout and stderr
//     both captured, the streams share one descriptor, so the order is
//     the true chronological interleaving.
//   - Cancellation terminates the process (process group on unix),
//     bounded by Request.Grace, and surfaces the context cause, never
//     a Result. Teardown completes before Run returns.
//   - A non-zero exit code is a Result, not an error. Result.Validate
//     is the only place that rejects it.
//
// A child which ignores end-of-stream conventions can still outlive the
// invocation: a grandchild holding the output pipe open delays the
// drain until the caller's context fires. Timeouts therefore belong to
// the caller, typically context.WithTimeout around Run.
package invoke
