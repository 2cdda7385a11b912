package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/CZERTAINLY/Piper/internal/stream"
	"golang.org/x/sync/errgroup"
)

// defaultGrace bounds teardown when Request.Grace is zero.
const defaultGrace = 3 * time.Second

// sessionState tracks the lifecycle of one invocation for logging and
// teardown bookkeeping.
type sessionState int32

const (
	stateCreated sessionState = iota
	stateStarted
	stateStreamsRunning
	stateDraining
	stateExited
	stateCancelling
	stateTerminated
)

func (s sessionState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarted:
		return "started"
	case stateStreamsRunning:
		return "streams-running"
	case stateDraining:
		return "draining"
	case stateExited:
		return "exited"
	case stateCancelling:
		return "cancelling"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// pumpFunc is one concurrent stream task: feeding stdin, capturing or
// consuming an output stream.
type pumpFunc func(ctx context.Context) error

// session owns a single invocation: the command, its pipes and its
// pumps. It lives from Run entry to Run return and is never reused.
type session struct {
	req   Request
	cmd   *exec.Cmd
	state atomic.Int32

	// group deliberately carries no context: a failing pump must not
	// cancel its siblings, they are always drained to the end.
	group    errgroup.Group
	captured []string

	// files holds ToFile/FromFile handles, closed after the exit-wait.
	files []*os.File
}

func (s *session) setState(ctx context.Context, st sessionState) {
	s.state.Store(int32(st))
	slog.DebugContext(ctx, "session state changed", "state", st.String(), "path", s.req.Path)
}

func (s *session) run(ctx context.Context) (*Result, error) {
	pumps, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.req.Path, err)
	}
	s.setState(ctx, stateStarted)
	slog.DebugContext(ctx, "process started", "path", s.req.Path, "pid", s.cmd.Process.Pid)

	for _, pump := range pumps {
		s.group.Go(func() error {
			return guard(ctx, pump)
		})
	}
	s.setState(ctx, stateStreamsRunning)

	// Pipes must be fully drained before the exit-wait: waiting first
	// races the pumps and can truncate output or block the child on a
	// full pipe buffer.
	s.setState(ctx, stateDraining)
	pumpErr := s.group.Wait()

	waitErr := s.cmd.Wait()

	if cause := context.Cause(ctx); cause != nil {
		// Teardown already ran: the process was signalled, the pipes
		// are closed and every pump was joined above. Cancellation is
		// an outcome, not a Result.
		return nil, cause
	}
	if pumpErr != nil {
		return nil, fmt.Errorf("streaming %s: %w", s.req.Path, pumpErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for %s: %w", s.req.Path, waitErr)
		}
		code = exitCode(exitErr.ProcessState)
	}
	s.setState(ctx, stateExited)
	return &Result{ExitCode: code, Output: s.captured}, nil
}

// prepare resolves the request into exec.Cmd redirections plus the pump
// set, without starting anything.
func (s *session) prepare(ctx context.Context) ([]pumpFunc, error) {
	cmd := exec.CommandContext(ctx, s.req.Path, s.req.Args...)
	cmd.Dir = s.req.Dir
	cmd.Env = environ(s.req.Env)

	grace := s.req.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	cmd.WaitDelay = grace
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		s.setState(ctx, stateCancelling)
		err := terminate(cmd, s.req.Forceful)
		s.setState(ctx, stateTerminated)
		return err
	}
	s.cmd = cmd

	var pumps []pumpFunc
	pump, err := s.resolveInput(cmd)
	if err != nil {
		return nil, err
	}
	if pump != nil {
		pumps = append(pumps, pump)
	}

	outPumps, err := s.resolveOutputs(cmd)
	if err != nil {
		return nil, err
	}
	return append(pumps, outPumps...), nil
}

// resolveOutputs wires both output sinks. When stdout and stderr are
// both Capture, the child's stderr is pointed at its stdout descriptor:
// the kernel serializes the writes and the single capture pump observes
// the true chronological interleaving. Application-level interleaving of
// two separately buffered pipes cannot give that guarantee, so stderr
// gets no destination of its own in that case.
func (s *session) resolveOutputs(cmd *exec.Cmd) ([]pumpFunc, error) {
	stdout := s.req.Stdout
	if stdout == nil {
		stdout = Inherit{}
	}
	stderr := s.req.Stderr
	if stderr == nil {
		stderr = Inherit{}
	}

	_, stdoutCapture := stdout.(Capture)
	_, stderrCapture := stderr.(Capture)
	if stdoutCapture && stderrCapture {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		cmd.Stderr = cmd.Stdout
		return []pumpFunc{s.capturePump(pipe)}, nil
	}

	var pumps []pumpFunc
	for _, out := range []struct {
		sink   Sink
		stdout bool
	}{{stdout, true}, {stderr, false}} {
		pump, err := s.resolveSink(cmd, out.sink, out.stdout)
		if err != nil {
			return nil, err
		}
		if pump != nil {
			pumps = append(pumps, pump)
		}
	}
	return pumps, nil
}

// resolveSink wires one output stream and returns a pump for the sinks
// which need one (Capture, Consume).
func (s *session) resolveSink(cmd *exec.Cmd, sink Sink, stdout bool) (pumpFunc, error) {
	name := "stderr"
	if stdout {
		name = "stdout"
	}
	pipe := func() (io.ReadCloser, error) {
		if stdout {
			return cmd.StdoutPipe()
		}
		return cmd.StderrPipe()
	}

	switch v := sink.(type) {
	case Discard:
		// a nil exec field wires the null device
		return nil, nil
	case Inherit:
		if stdout {
			cmd.Stdout = os.Stdout
		} else {
			cmd.Stderr = os.Stderr
		}
		return nil, nil
	case Capture:
		r, err := pipe()
		if err != nil {
			return nil, err
		}
		return s.capturePump(r), nil
	case Consume:
		r, err := pipe()
		if err != nil {
			return nil, err
		}
		return s.consumePump(r, v.Handler), nil
	case ToFile:
		flags := os.O_CREATE | os.O_WRONLY
		if v.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(v.Path, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening %s sink: %w", name, err)
		}
		s.files = append(s.files, f)
		if stdout {
			cmd.Stdout = f
		} else {
			cmd.Stderr = f
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: unsupported sink %T", name, sink)
	}
}

// capturePump drains one pipe into the session's ordered line slice,
// echoing every line to OnLine as it arrives. At most one capture pump
// exists per invocation thanks to the merge rule, so the appends and the
// OnLine calls are serialized.
func (s *session) capturePump(r io.Reader) pumpFunc {
	return func(ctx context.Context) error {
		lines := stream.NewLines(r, s.req.Charset)
		for line := range lines.Seq(ctx) {
			s.captured = append(s.captured, line)
			if s.req.OnLine != nil {
				s.req.OnLine(ctx, line)
			}
		}
		return lines.Err()
	}
}

// consumePump hands the lazy line sequence to the sink handler, which
// owns iteration. The pipe is closed when the handler returns, so a
// child still writing to an abandoned stream gets EPIPE instead of
// blocking the exit-wait on a full buffer.
func (s *session) consumePump(r io.ReadCloser, handler ConsumeFunc) pumpFunc {
	return func(ctx context.Context) error {
		defer func() {
			_ = r.Close()
		}()
		lines := stream.NewLines(r, s.req.Charset)
		if err := handler(ctx, lines.Seq(ctx)); err != nil {
			return err
		}
		return lines.Err()
	}
}

// resolveInput wires stdin. Fixed bytes, foreign readers and writer
// callbacks feed a pipe through an input pump which always closes it,
// so the child observes end-of-input on every path. Files are handed to
// the child directly.
func (s *session) resolveInput(cmd *exec.Cmd) (pumpFunc, error) {
	switch src := s.req.Stdin.(type) {
	case nil:
		return nil, nil
	case FromBytes:
		return s.inputPump(cmd, func(w io.Writer) error {
			_, err := w.Write(src.Data)
			return err
		})
	case FromFile:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("opening stdin source: %w", err)
		}
		s.files = append(s.files, f)
		cmd.Stdin = f
		return nil, nil
	case FromReader:
		return s.inputPump(cmd, func(w io.Writer) error {
			_, err := io.Copy(w, src.R)
			return err
		})
	case FromWriter:
		return s.inputPump(cmd, src.Write)
	default:
		return nil, fmt.Errorf("stdin: unsupported input %T", src)
	}
}

func (s *session) inputPump(cmd *exec.Cmd, write WriteFunc) (pumpFunc, error) {
	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		defer func() {
			_ = pipe.Close()
		}()
		err := write(pipe)
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
			// the child stopped reading its input, which is its right
			return nil
		}
		return err
	}, nil
}

// guard converts a pump panic, typically raised inside a caller
// callback, into an ordinary pump failure. The invocation fails, the
// program survives, and deferred closes have already run.
func guard(ctx context.Context, pump pumpFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream callback panicked: %v", r)
		}
	}()
	return pump(ctx)
}

// environ merges the overlay into the inherited environment. os/exec
// keeps the last entry on duplicate names, so overlay values override
// inherited ones.
func environ(overlay map[string]string) []string {
	if len(overlay) == 0 {
		return nil
	}
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

// exitCode maps a process state to the reported code, following the
// shell convention of 128+signal for signal deaths.
func exitCode(state *os.ProcessState) int {
	code := state.ExitCode()
	if code >= 0 {
		return code
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return code
}

func (s *session) closeFiles() {
	for _, f := range s.files {
		_ = f.Close()
	}
}
