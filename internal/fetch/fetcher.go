// Package fetch performs catalog HTTP requests with bounded retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/metrics"
	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 2 * time.Second

	bodySnippetLimit = 100
)

// ErrAttemptsExhausted is returned when every attempt was rate limited.
var ErrAttemptsExhausted = errors.New("all attempts exhausted")

var errRateLimited = errors.New("rate limited")

// HTTPError is a non-2xx response other than 429.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

type Fetcher struct {
	client    *http.Client
	attempts  uint
	baseDelay time.Duration
	log       zerolog.Logger
}

type Option func(*Fetcher)

func WithAttempts(n uint) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.baseDelay = d
		}
	}
}

func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	f := &Fetcher{
		client:    client,
		attempts:  DefaultAttempts,
		baseDelay: DefaultBaseDelay,
		log:       logging.Component("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues a GET and returns the first 2xx response. The caller closes the body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			return f.attempt(ctx, rawURL)
		},
		retry.Attempts(f.attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return f.baseDelay * time.Duration(n+2)
		}),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warn().
				Uint("attempt", n+1).
				Uint("attempts", f.attempts).
				Str("url", redact(rawURL)).
				Err(err).
				Msg("catalog request failed")
		}),
	)
	if err != nil {
		if errors.Is(err, errRateLimited) {
			return nil, ErrAttemptsExhausted
		}
		return nil, err
	}
	return resp, nil
}

// FetchJSON fetches rawURL and decodes the body into v.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.UpstreamAttempts.WithLabelValues("network_error").Inc()
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.UpstreamAttempts.WithLabelValues("rate_limited").Inc()
		drain(resp)
		return nil, errRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamAttempts.WithLabelValues("http_error").Inc()
		return nil, readHTTPError(resp)
	}

	metrics.UpstreamAttempts.WithLabelValues("ok").Inc()
	return resp, nil
}

// Non-JSON bodies are quoted back (truncated); JSON or untyped bodies are summarised by status text.
func readHTTPError(resp *http.Response) *HTTPError {
	defer resp.Body.Close()

	msg := http.StatusText(resp.StatusCode)
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "json") {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err == nil {
			msg = truncate(string(body), bodySnippetLimit)
		}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// Strip api_key from logged URLs
func redact(rawURL string) string {
	i := strings.Index(rawURL, "api_key=")
	if i < 0 {
		return rawURL
	}
	end := strings.IndexByte(rawURL[i:], '&')
	if end < 0 {
		return rawURL[:i] + "api_key=***"
	}
	return rawURL[:i] + "api_key=***" + rawURL[i+end:]
}
