package service_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/Piper/internal/service"
)

// recorder captures the last request seen by a test server, safe for
// concurrent use.
type recorder struct {
	mu     sync.Mutex
	method string
	path   string
	auth   string
	ctype  string
	body   string
}

func (r *recorder) record(req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = req.Method
	r.path = req.URL.Path
	r.auth = req.Header.Get("Authorization")
	r.ctype = req.Header.Get("Content-Type")
	r.body = string(b)
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		method: r.method,
		path:   r.path,
		auth:   r.auth,
		ctype:  r.ctype,
		body:   r.body,
	}
}

func TestReportUploader(t *testing.T) {
	t.Parallel()

	t.Run("posts output with a bearer token", func(t *testing.T) {
		t.Parallel()
		var rec recorder
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec.record(req)
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		up, err := service.NewReportUploader(srv.URL+"/logs", "sesame")
		require.NoError(t, err)
		require.NoError(t, up.Upload(t.Context(), []byte("line one\nline two\n")))

		got := rec.snapshot()
		require.Equal(t, http.MethodPost, got.method)
		require.Equal(t, "/logs", got.path)
		require.Equal(t, "Bearer sesame", got.auth)
		require.Equal(t, "text/plain; charset=utf-8", got.ctype)
		require.Equal(t, "line one\nline two\n", got.body)
	})

	t.Run("no token means no authorization header", func(t *testing.T) {
		t.Parallel()
		var rec recorder
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec.record(req)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		up, err := service.NewReportUploader(srv.URL, "")
		require.NoError(t, err)
		require.NoError(t, up.Upload(t.Context(), []byte("hello\n")))
		require.Empty(t, rec.snapshot().auth)
	})

	t.Run("problem json carries the detail", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail": "quota exhausted"}`)
		}))
		defer srv.Close()

		up, err := service.NewReportUploader(srv.URL, "")
		require.NoError(t, err)
		err = up.Upload(t.Context(), []byte("hello\n"))
		require.EqualError(t, err, "status code: 400, detail: quota exhausted")
	})

	t.Run("unknown failure carries the body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		up, err := service.NewReportUploader(srv.URL, "")
		require.NoError(t, err)
		err = up.Upload(t.Context(), []byte("hello\n"))
		require.ErrorContains(t, err, "unknown error, status: 500")
		require.ErrorContains(t, err, "boom")
	})

	t.Run("rejects an url without a scheme or host", func(t *testing.T) {
		t.Parallel()
		for _, given := range []string{"", "collector.example.com/logs", "/just/a/path"} {
			_, err := service.NewReportUploader(given, "")
			require.ErrorContains(t, err, "scheme and a host", "given: %q", given)
		}
	})
}

// can't be parallel as it touches the process environment
func TestReportUploaderTokenExpansion(t *testing.T) {
	t.Setenv("PIPER_TEST_REPORT_TOKEN", "from-env")
	var rec recorder
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec.record(req)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up, err := service.NewReportUploader(srv.URL, "$PIPER_TEST_REPORT_TOKEN")
	require.NoError(t, err)
	require.NoError(t, up.Upload(t.Context(), []byte("hello\n")))
	require.Equal(t, "Bearer from-env", rec.snapshot().auth)
}
