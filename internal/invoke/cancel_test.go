package invoke_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/Piper/internal/invoke"
)

// startBlocked launches the script in the background and waits until the
// child confirmed over stdout that it is running. The returned channel
// carries the Run error once the invocation winds down.
func startBlocked(t *testing.T, script string, forceful bool, grace time.Duration) (context.CancelFunc, <-chan error) {
	t.Helper()
	sh := lookPath(t, "sh")

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)

	ready := make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		res, err := invoke.Run(ctx, invoke.Request{
			Path:     sh,
			Args:     []string{"-c", script},
			Stdout:   invoke.Capture{},
			Forceful: forceful,
			Grace:    grace,
			OnLine: func(context.Context, string) {
				select {
				case ready <- struct{}{}:
				default:
				}
			},
		})
		if res != nil {
			errc <- fmt.Errorf("got a result with exit code %d instead of a cancellation error", res.ExitCode)
			return
		}
		errc <- err
	}()

	select {
	case <-ready:
	case <-time.After(30 * time.Second):
		t.Fatal("child never reported ready")
	}
	return cancel, errc
}

// awaitCancelled bounds the teardown and checks the reported cause.
func awaitCancelled(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("cancellation did not finish in time")
	}
}

func TestCancelGraceful(t *testing.T) {
	t.Parallel()
	cancel, errc := startBlocked(t, "echo ready; sleep 30", false, 0)

	cancel()
	awaitCancelled(t, errc)
}

func TestCancelForceful(t *testing.T) {
	t.Parallel()
	// the child shrugs off the polite signal, forceful goes straight past it
	cancel, errc := startBlocked(t, `trap "" TERM; echo ready; while :; do :; done`, true, 0)

	cancel()
	awaitCancelled(t, errc)
}

func TestCancelGraceExpiry(t *testing.T) {
	t.Parallel()
	// same stubborn child, but graceful: the kill only lands once the
	// grace window runs out
	cancel, errc := startBlocked(t, `trap "" TERM; echo ready; while :; do :; done`, false, 300*time.Millisecond)

	cancel()
	awaitCancelled(t, errc)
}

func TestCancelCause(t *testing.T) {
	t.Parallel()
	sh := lookPath(t, "sh")

	cause := fmt.Errorf("deadline for the batch window")
	ctx, cancel := context.WithCancelCause(t.Context())
	t.Cleanup(func() { cancel(nil) })

	ready := make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		_, err := invoke.Run(ctx, invoke.Request{
			Path:   sh,
			Args:   []string{"-c", "echo ready; sleep 30"},
			Stdout: invoke.Capture{},
			OnLine: func(context.Context, string) {
				select {
				case ready <- struct{}{}:
				default:
				}
			},
		})
		errc <- err
	}()

	select {
	case <-ready:
	case <-time.After(30 * time.Second):
		t.Fatal("child never reported ready")
	}

	cancel(cause)
	select {
	case err := <-errc:
		require.ErrorIs(t, err, cause)
	case <-time.After(10 * time.Second):
		t.Fatal("cancellation did not finish in time")
	}
}
