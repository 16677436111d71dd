// Package netfetch downloads catalog feeds and books over HTTP with
// idle timeouts and retries.
package netfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/storage"
)

// Defaults for a new Client.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

var (
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("netfetch: unexpected status")
	// ErrTimeout is returned when the server sends nothing for Timeout.
	ErrTimeout = errors.New("netfetch: timed out")
)

// Progress is called as a download advances. total is 0 when the server
// did not send a length.
type Progress func(downloaded, total int64)

// Client fetches URLs. The zero value is not usable; call New.
type Client struct {
	HTTP     *http.Client
	Timeout  time.Duration // for the response headers, then between body reads
	Attempts uint
	Delay    time.Duration

	fs      storage.FileSystem
	log     *logging.Logger
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithTimeout sets how long to wait for the response headers and, after
// that, for each body read. A slow body that keeps arriving never times
// out. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.Timeout = d }
}

// WithAttempts sets how many times a request is tried.
func WithAttempts(n uint) Option {
	return func(c *Client) { c.Attempts = n }
}

// WithDelay sets the base delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.Delay = d }
}

// WithRateLimit caps body reads at bytesPerSec. Zero means unlimited.
func WithRateLimit(bytesPerSec int) Option {
	return func(c *Client) {
		if bytesPerSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
		}
	}
}

// WithFileSystem sets where DownloadToFile writes.
func WithFileSystem(fsys storage.FileSystem) Option {
	return func(c *Client) { c.fs = fsys }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		HTTP:     http.DefaultClient,
		Timeout:  DefaultTimeout,
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
		fs:       storage.Default,
		log:      logging.Noop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.Attempts == 0 {
		c.Attempts = 1
	}
	c.log = c.log.WithComponent("netfetch")
	return c
}

// FetchIntoStream copies the body of url into w. Connection failures and
// 5xx responses are retried until the first body byte is written.
func (c *Client) FetchIntoStream(ctx context.Context, rawURL string, w io.Writer) error {
	return c.get(ctx, "fetch", rawURL, func(resp *http.Response) (bool, error) {
		cw := &countingWriter{w: w}
		_, err := io.Copy(cw, c.body(ctx, resp.Body))
		return cw.n == 0, err
	})
}

// DownloadToFile saves the body of url at dest. The body is written to
// dest.part and renamed once complete, so dest is never partial.
func (c *Client) DownloadToFile(ctx context.Context, rawURL, dest string, onProgress Progress) error {
	if err := c.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return model.Wrap(model.ErrIO, "download", err)
	}
	part := dest + ".part"

	err := c.get(ctx, "download", rawURL, func(resp *http.Response) (bool, error) {
		f, err := c.fs.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return false, model.Wrap(model.ErrIO, "download", err)
		}
		total := max(resp.ContentLength, 0)
		pw := &progressWriter{w: f, total: total, fn: onProgress}
		if onProgress != nil {
			onProgress(0, total)
		}
		_, cerr := io.Copy(pw, c.body(ctx, resp.Body))
		if err := f.Close(); err != nil && cerr == nil {
			cerr = model.Wrap(model.ErrIO, "download", err)
		}
		if cerr != nil {
			_ = c.fs.Remove(part)
			// A retry rewrites the part file from the start.
			return !errors.Is(cerr, model.ErrIO), cerr
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if err := c.fs.Rename(part, dest); err != nil {
		_ = c.fs.Remove(part)
		return model.Wrap(model.ErrIO, "download", err)
	}
	c.log.Info("download complete", "url", rawURL, "dest", dest)
	return nil
}

// get performs a GET with retries. consume reads the body and reports
// whether a failure may be retried.
func (c *Client) get(ctx context.Context, op, rawURL string, consume func(*http.Response) (bool, error)) error {
	err := retry.Do(
		func() error {
			actx, cancel := context.WithCancelCause(ctx)
			defer cancel(nil)
			var idle *time.Timer
			if c.Timeout > 0 {
				idle = time.AfterFunc(c.Timeout, func() { cancel(ErrTimeout) })
				defer idle.Stop()
			}

			req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.HTTP.Do(req)
			if err != nil {
				return c.timedOut(actx, err)
			}
			defer resp.Body.Close()
			resp.Body = &idleReader{ReadCloser: resp.Body, timer: idle, d: c.Timeout}

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				err := fmt.Errorf("%w: %s", ErrStatus, resp.Status)
				if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
					return err
				}
				return retry.Unrecoverable(err)
			}
			retryable, err := consume(resp)
			if err != nil {
				err = c.timedOut(actx, err)
			}
			if err != nil && !retryable {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.Attempts),
		retry.Delay(c.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("request failed, retrying", "op", op, "url", rawURL, "attempt", n+1, "error", err)
		}),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrIO) || errors.Is(err, model.ErrNetwork) {
		return err
	}
	return model.Wrap(model.ErrNetwork, op, err)
}

// timedOut marks err as a timeout when the attempt was canceled by the
// idle timer.
func (c *Client) timedOut(actx context.Context, err error) error {
	if errors.Is(context.Cause(actx), ErrTimeout) {
		return fmt.Errorf("%w: nothing received for %s: %v", ErrTimeout, c.Timeout, err)
	}
	return err
}

func (c *Client) body(ctx context.Context, r io.Reader) io.Reader {
	if c.limiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, l: c.limiter}
}

// BuildURL resolves path against the server URL. Absolute URLs are
// returned unchanged, paths starting with "/" replace the server path, and
// other paths are appended to it. A server without a scheme gets http.
func BuildURL(server, path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	server = strings.TrimSpace(server)
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	if path == "" {
		return server
	}

	u, err := url.Parse(server)
	if err != nil {
		return strings.TrimRight(server, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if strings.HasPrefix(path, "/") {
		return u.Scheme + "://" + u.Host + path
	}
	return strings.TrimRight(server, "/") + "/" + path
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type progressWriter struct {
	w     io.Writer
	n     int64
	total int64
	fn    Progress
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.n += int64(n)
	if err != nil {
		return n, model.Wrap(model.ErrIO, "download", err)
	}
	if pw.fn != nil && n > 0 {
		pw.fn(pw.n, pw.total)
	}
	return n, nil
}

// idleReader restarts the attempt's idle timer on every read, so the
// timeout bounds gaps in the body rather than its total duration.
type idleReader struct {
	io.ReadCloser
	timer *time.Timer
	d     time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	if ir.timer != nil {
		ir.timer.Reset(ir.d)
	}
	return ir.ReadCloser.Read(p)
}

// limitedReader paces reads to the limiter.
type limitedReader struct {
	ctx context.Context
	r   io.Reader
	l   *rate.Limiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	if b := lr.l.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.l.WaitN(lr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
