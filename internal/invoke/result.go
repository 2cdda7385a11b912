package invoke

import "fmt"

// Result is the terminal value of one invocation: the exit code plus the
// lines captured from streams wired as Capture, in arrival order. It is
// assembled exactly once, after the process has exited and every pump
// has finished, and is immutable afterwards.
type Result struct {
	ExitCode int
	Output   []string
}

// ExitError reports a non-zero exit code rejected by Result.Validate.
type ExitError struct {
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("invalid result: exit code %d", e.ExitCode)
}

// Validate is the strict reading of a Result: the captured output when
// the process exited 0, an *ExitError otherwise. Nowhere else in this
// package is a non-zero exit an error.
func (r *Result) Validate() ([]string, error) {
	if r.ExitCode != 0 {
		return nil, &ExitError{ExitCode: r.ExitCode}
	}
	return r.Output, nil
}
