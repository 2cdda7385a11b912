package model_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/Piper/internal/model"
	"github.com/stretchr/testify/require"
)

func TestHumanDuration(t *testing.T) {
	// can't be parallel as subtests touch the process environment
	t.Run("plain", func(t *testing.T) {
		var d model.Duration
		require.NoError(t, d.UnmarshalText([]byte("1m30s")))
		require.Equal(t, 90*time.Second, d.AsDuration())
	})

	t.Run("env expanded", func(t *testing.T) {
		t.Setenv("PIPER_TEST_GRACE", "250ms")
		var d model.Duration
		require.NoError(t, d.UnmarshalText([]byte("$PIPER_TEST_GRACE")))
		require.Equal(t, 250*time.Millisecond, d.AsDuration())
	})

	t.Run("empty", func(t *testing.T) {
		var d model.Duration
		require.EqualError(t, d.UnmarshalText(nil), "can't be empty")
	})

	t.Run("garbage", func(t *testing.T) {
		var d model.Duration
		require.Error(t, d.UnmarshalText([]byte("not a duration")))
	})

	t.Run("marshal", func(t *testing.T) {
		d := model.Duration{Duration: 90 * time.Second}
		b, err := d.MarshalText()
		require.NoError(t, err)
		require.Equal(t, "1m30s", string(b))
	})
}

func TestHumanCharset(t *testing.T) {
	t.Parallel()

	t.Run("latin1 decodes", func(t *testing.T) {
		t.Parallel()
		var c model.Charset
		require.NoError(t, c.UnmarshalText([]byte("ISO-8859-1")))
		require.NotNil(t, c.AsEncoding())

		decoded, err := c.AsEncoding().NewDecoder().Bytes([]byte{0x68, 0xE9})
		require.NoError(t, err)
		require.Equal(t, "hé", string(decoded))
	})

	t.Run("utf8", func(t *testing.T) {
		t.Parallel()
		var c model.Charset
		require.NoError(t, c.UnmarshalText([]byte("utf-8")))
		require.NotNil(t, c.AsEncoding())
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		var c model.Charset
		require.Error(t, c.UnmarshalText([]byte("no-such-charset")))
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		var c model.Charset
		require.EqualError(t, c.UnmarshalText(nil), "can't be empty")
	})

	t.Run("name round trips", func(t *testing.T) {
		t.Parallel()
		var c model.Charset
		require.NoError(t, c.UnmarshalText([]byte("ISO-8859-2")))
		name, err := c.MarshalText()
		require.NoError(t, err)
		require.NotEmpty(t, name)

		var back model.Charset
		require.NoError(t, back.UnmarshalText(name))
		require.Equal(t, c.AsEncoding(), back.AsEncoding())
	})
}

func TestHumanURL(t *testing.T) {
	// can't be parallel as subtests touch the process environment
	t.Run("plain", func(t *testing.T) {
		var u model.URL
		require.NoError(t, u.UnmarshalText([]byte("https://example.com/report")))
		require.Equal(t, "example.com", u.Host)
		require.Equal(t, "/report", u.Path)
	})

	t.Run("env expanded", func(t *testing.T) {
		t.Setenv("PIPER_TEST_HOST", "reports.example.com")
		var u model.URL
		require.NoError(t, u.UnmarshalText([]byte("https://$PIPER_TEST_HOST")))
		require.Equal(t, "reports.example.com", u.Host)
	})

	t.Run("marshal", func(t *testing.T) {
		var u model.URL
		require.NoError(t, u.UnmarshalText([]byte("https://example.com")))
		b, err := u.MarshalText()
		require.NoError(t, err)
		require.Equal(t, "https://example.com", string(b))
	})
}
