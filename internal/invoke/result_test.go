package invoke_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/Piper/internal/invoke"
)

func TestResultValidate(t *testing.T) {
	t.Parallel()

	t.Run("success passes lines through", func(t *testing.T) {
		t.Parallel()
		res := invoke.Result{Output: []string{"a", "b"}}
		lines, err := res.Validate()
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, lines)
	})

	t.Run("non-zero carries the code", func(t *testing.T) {
		t.Parallel()
		res := invoke.Result{ExitCode: 42, Output: []string{"partial"}}
		lines, err := res.Validate()
		require.Nil(t, lines)
		require.EqualError(t, err, "invalid result: exit code 42")

		var exitErr *invoke.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, 42, exitErr.ExitCode)
	})
}
