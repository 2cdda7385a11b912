package profile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/Piper/internal/profile"
	"github.com/stretchr/testify/require"
)

const profilesYAML = `
build:
  lint:
    command:
      path: golangci-lint
      args:
        - run
        - ./...
      timeout: "15s"
      env:
        GODEBUG: "gotypesalias=1"
        http_proxy: "http://proxy.internal:3128"
        home: $HOME
    strict: true
release:
  notes:
    command:
      path: git
      args: [log, --oneline]
`

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0644))

	p, err := profile.Load(path, "build.lint")
	require.NoError(t, err)
	require.Equal(t, "golangci-lint", p.Command.Path)
	require.Equal(t, []string{"run", "./..."}, p.Command.Args)
	require.Equal(t, 15*time.Second, p.Command.Timeout)
	require.True(t, p.Strict)

	// env keys keep the spelling from the file, upper, lower or mixed
	require.Equal(t, map[string]string{
		"GODEBUG":    "gotypesalias=1",
		"http_proxy": "http://proxy.internal:3128",
		"home":       "$HOME",
	}, p.Command.Env)

	t.Run("request", func(t *testing.T) {
		req := p.Request()
		require.Equal(t, "golangci-lint", req.Path)
		require.Equal(t, []string{"run", "./..."}, req.Args)
		require.Equal(t, "gotypesalias=1", req.Env["GODEBUG"])
		require.Equal(t, "http://proxy.internal:3128", req.Env["http_proxy"])
		require.NotContains(t, req.Env, "HTTP_PROXY")
		require.NotContains(t, req.Env["home"], "$")
	})

	t.Run("second profile", func(t *testing.T) {
		p, err := profile.Load(path, "release.notes")
		require.NoError(t, err)
		require.Equal(t, "git", p.Command.Path)
		require.Zero(t, p.Command.Timeout)
		require.False(t, p.Strict)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := profile.Load(path, "build.missing")
		require.Error(t, err)
		require.ErrorContains(t, err, "no command path")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := profile.Load(filepath.Join(t.TempDir(), "nope.yaml"), "build.lint")
		require.Error(t, err)
	})
}
