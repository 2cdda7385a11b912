package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/encoding"
)

var ErrNoCommand = errors.New("no command given")

// LineFunc observes every line added to Result.Output, in arrival order,
// while the process is still running. Calls always come from a single
// pump goroutine, so they are serialized.
type LineFunc func(ctx context.Context, line string)

// Request describes one invocation. It must not be mutated once handed
// to Run.
type Request struct {
	// Path is the program to execute, resolved the way os/exec does.
	Path string
	Args []string

	// Env is merged into the inherited environment and overrides it on
	// conflict. It never replaces the environment wholesale.
	Env map[string]string

	// Dir overrides the child's working directory.
	Dir string

	// Stdin selects the input source, nil means none.
	Stdin Input

	// Stdout and Stderr select the output sinks, nil means Inherit.
	Stdout Sink
	Stderr Sink

	// OnLine, when set, observes captured lines as they arrive.
	OnLine LineFunc

	// Charset decodes output lines, nil means UTF-8.
	Charset encoding.Encoding

	// Forceful kills on cancellation instead of terminating gracefully.
	Forceful bool

	// Grace bounds teardown between the termination request and the
	// forced kill plus pipe close. Zero selects the 3s default.
	Grace time.Duration
}

func (r Request) validate() error {
	if r.Path == "" {
		return ErrNoCommand
	}
	for _, out := range []struct {
		name string
		sink Sink
	}{{"stdout", r.Stdout}, {"stderr", r.Stderr}} {
		switch v := out.sink.(type) {
		case nil, Discard, Inherit, Capture:
		case ToFile:
			if v.Path == "" {
				return fmt.Errorf("%s: file sink needs a path", out.name)
			}
		case Consume:
			if v.Handler == nil {
				return fmt.Errorf("%s: consume sink needs a handler", out.name)
			}
		default:
			return fmt.Errorf("%s: unsupported sink %T", out.name, v)
		}
	}
	switch v := r.Stdin.(type) {
	case nil, FromBytes:
	case FromFile:
		if v.Path == "" {
			return errors.New("stdin: file input needs a path")
		}
	case FromReader:
		if v.R == nil {
			return errors.New("stdin: reader input needs a reader")
		}
	case FromWriter:
		if v.Write == nil {
			return errors.New("stdin: writer input needs a callback")
		}
	default:
		return fmt.Errorf("stdin: unsupported input %T", v)
	}
	return nil
}
