package invoke

import "context"

// Run executes one command invocation to completion: it resolves the
// redirection policy, starts the process, runs every pump concurrently,
// drains them all, then waits for the exit code.
//
// A non-zero exit code is not an error, it is reported in the Result;
// use Result.Validate for the strict reading. Cancelling ctx terminates
// the process and makes Run return the cancellation cause instead of a
// Result, always after teardown completed. Launch failures and stream
// failures are errors.
func Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	s := &session{req: req}
	s.setState(ctx, stateCreated)
	defer s.closeFiles()
	return s.run(ctx)
}
