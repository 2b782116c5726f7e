package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound           = errors.New("http: resource not found")
	ErrForbidden          = errors.New("http: access forbidden")
	ErrUnauthorized       = errors.New("http: unauthorized")
	ErrServerError        = errors.New("http: server error")
	ErrRangeUnsatisfiable = errors.New("http: requested range not satisfiable")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// Timeout for establishing a response. Body reads are not bounded by
	// this timeout since archive files take minutes to stream.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 16,
		Timeout:             30 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// FileInfo contains metadata about a remote file.
type FileInfo struct {
	Size          int64
	ETag          string
	AcceptsRanges bool
	ContentType   string
	LastModified  time.Time
}

// Response wraps a streaming GET response.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
	ETag          string

	// Resumed reports whether the server honored the Range header and
	// returned partial content from the requested offset.
	Resumed bool
}

// Client is an HTTP client optimized for large file downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		DisableCompression:    true, // raw bytes, sizes must match the archive report
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// Head performs a HEAD request to get file metadata.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			return nil, err
		}

		info := &FileInfo{
			Size:          resp.ContentLength,
			ETag:          cleanETag(resp.Header.Get("ETag")),
			AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
			ContentType:   resp.Header.Get("Content-Type"),
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				info.LastModified = t
			}
		}
		return info, nil
	}

	return nil, fmt.Errorf("head request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// Get performs a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.GetFrom(ctx, url, 0)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetFrom performs a GET request resuming from the given byte offset.
// With offset zero no Range header is sent. A server that ignores the
// Range header still yields a usable response with Resumed=false; the
// caller decides whether to restart from scratch.
func (c *Client) GetFrom(ctx context.Context, url string, offset int64) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if offset > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Server errors are retryable
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			resp.Body.Close()
			return nil, ErrRangeUnsatisfiable
		}

		if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if err := checkStatusCode(resp.StatusCode); err != nil {
				return nil, err
			}
		}

		resumed := resp.StatusCode == http.StatusPartialContent
		if resumed {
			// Sanity-check the resume offset when the server reports it.
			if cr := resp.Header.Get("Content-Range"); cr != "" {
				start, _, _, err := ParseContentRange(cr)
				if err == nil && start != offset {
					resp.Body.Close()
					return nil, fmt.Errorf("http: server resumed at byte %d, wanted %d", start, offset)
				}
			}
		}

		return &Response{
			Body:          resp.Body,
			ContentLength: resp.ContentLength,
			ETag:          cleanETag(resp.Header.Get("ETag")),
			Resumed:       resumed,
		}, nil
	}

	return nil, fmt.Errorf("get request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// cleanETag removes quotes from an ETag value.
func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total may be -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	header = strings.TrimPrefix(header, "bytes ")
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	rangeParts := strings.Split(parts[0], "-")
	if len(rangeParts) != 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	start, err = strconv.ParseInt(rangeParts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}

	end, err = strconv.ParseInt(rangeParts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}

	if parts[1] == "*" {
		total = -1
	} else {
		total, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	return start, end, total, nil
}
