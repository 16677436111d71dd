package netfetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

func newTestClient(opts ...Option) *Client {
	return New(append([]Option{WithDelay(time.Millisecond)}, opts...)...)
}

// flaky fails the first n requests with status, then serves body.
func flaky(n int32, status int, body []byte, hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write(body)
	}
}

func TestFetchIntoStream(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(0, 0, []byte("<feed/>"), &hits))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, newTestClient().FetchIntoStream(context.Background(), srv.URL, &buf))
	assert.Equal(t, "<feed/>", buf.String())
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetchIntoStream_Status(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		status   int
		wantErr  bool
		wantHits int32
	}{
		{"not found is not retried", 10, http.StatusNotFound, true, 1},
		{"server error recovers", 2, http.StatusServiceUnavailable, false, 3},
		{"server error exhausts attempts", 10, http.StatusInternalServerError, true, 3},
		{"too many requests is retried", 1, http.StatusTooManyRequests, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(flaky(tt.failures, tt.status, []byte("ok"), &hits))
			defer srv.Close()

			var buf bytes.Buffer
			err := newTestClient(WithAttempts(3)).FetchIntoStream(context.Background(), srv.URL, &buf)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrNetwork)
				assert.ErrorIs(t, err, ErrStatus)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ok", buf.String())
			}
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestFetchIntoStream_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(WithTimeout(20*time.Millisecond), WithAttempts(1))
	err := c.FetchIntoStream(context.Background(), srv.URL, &bytes.Buffer{})
	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.ErrorIs(t, err, ErrTimeout)
}

// trickle writes chunks of body with a pause before each one, then stalls
// for stall before returning.
func trickle(chunks int, pause, stall time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for i := 0; i < chunks; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(pause):
			}
			w.Write(bytes.Repeat([]byte("x"), 10))
			w.(http.Flusher).Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(stall):
		}
	}
}

func TestDownloadToFile_SlowBodyWithinIdleTimeout(t *testing.T) {
	// 8 chunks 40ms apart take longer than the timeout in total.
	srv := httptest.NewServer(trickle(8, 40*time.Millisecond, 0))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "slow.epub")
	c := newTestClient(WithTimeout(200*time.Millisecond), WithAttempts(1))
	require.NoError(t, c.DownloadToFile(context.Background(), srv.URL, dest, nil))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, data, 80)
}

func TestDownloadToFile_StalledBodyTimesOut(t *testing.T) {
	srv := httptest.NewServer(trickle(1, 0, 2*time.Second))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stalled.epub")
	c := newTestClient(WithTimeout(100*time.Millisecond), WithAttempts(1))
	start := time.Now()
	err := c.DownloadToFile(context.Background(), srv.URL, dest, nil)

	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchIntoStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(WithAttempts(2)).FetchIntoStream(context.Background(), url, &bytes.Buffer{})
	assert.ErrorIs(t, err, model.ErrNetwork)
}

func TestDownloadToFile(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 1000)
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(0, 0, body, &hits))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "news", "Daily - Press.epub")
	var last [2]int64
	var calls int
	err := newTestClient(WithRateLimit(1<<20)).DownloadToFile(context.Background(), srv.URL, dest, func(n, total int64) {
		last = [2]int64{n, total}
		calls++
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, [2]int64{1000, 1000}, last)
	assert.GreaterOrEqual(t, calls, 2)
	assert.NoFileExists(t, dest+".part")
}

func TestDownloadToFile_Failure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(10, http.StatusBadGateway, nil, &hits))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "book.xtc")
	err := newTestClient(WithAttempts(2)).DownloadToFile(context.Background(), srv.URL, dest, nil)
	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
	assert.EqualValues(t, 2, hits.Load())
}

func TestDownloadToFile_WriteFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(0, 0, []byte("payload"), &hits))
	defer srv.Close()

	fsys := storage.NewFaultyFS(nil)
	fsys.AddRule(".part", storage.Fault{FailWrite: true})

	dest := filepath.Join(t.TempDir(), "book.epub")
	err := newTestClient(WithFileSystem(fsys)).DownloadToFile(context.Background(), srv.URL, dest, nil)
	assert.ErrorIs(t, err, model.ErrIO)
	assert.NotErrorIs(t, err, model.ErrNetwork)
	assert.NoFileExists(t, dest)
	assert.EqualValues(t, 1, hits.Load())
}

func TestDownloadToFile_Canceled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(flaky(0, 0, []byte("payload"), &hits))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "book.epub")
	err := newTestClient().DownloadToFile(ctx, srv.URL, dest, nil)
	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.NoFileExists(t, dest)
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		server, path, want string
	}{
		{"http://books.local:8083", "opds", "http://books.local:8083/opds"},
		{"http://books.local:8083/", "opds", "http://books.local:8083/opds"},
		{"books.local", "opds/new", "http://books.local/opds/new"},
		{"https://host/calibre", "/opds/download/1/epub", "https://host/opds/download/1/epub"},
		{"https://host/calibre", "opds", "https://host/calibre/opds"},
		{"http://host", "https://cdn.example.com/b.xtc", "https://cdn.example.com/b.xtc"},
		{"http://host", "", "http://host"},
	}
	for _, tt := range tests {
		t.Run(tt.server+"|"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildURL(tt.server, tt.path))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(WithAttempts(0))
	assert.EqualValues(t, 1, c.Attempts)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.True(t, strings.HasPrefix(BuildURL("h", "x"), "http://"))
}
