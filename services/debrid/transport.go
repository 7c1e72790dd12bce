package debrid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"streamresolver/internal/streamerr"
)

const (
	defaultRetryAttempts = 4
	maxRetryDelay        = 30 * time.Second
)

// providerTransport sends provider API requests, retrying rate-limit and transient
// 503 responses, and turns failures into classified streamerr errors.
type providerTransport struct {
	provider   string
	httpClient *http.Client
	attempts   uint
	baseDelay  time.Duration
}

func newProviderTransport(provider string) *providerTransport {
	return &providerTransport{
		provider:   provider,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   defaultRetryAttempts,
		baseDelay:  time.Second,
	}
}

// retryableStatus is returned from inside the retry loop for 429/503 responses.
type retryableStatus struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// ensureReplayableBody buffers the request body so it can be replayed between retries.
func ensureReplayableBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	_ = req.Body.Close()

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(bodyBytes)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(bodyBytes))
	return nil
}

// do performs the request. Non-retryable responses are returned as-is, whatever
// their status; exhausted retries become a classified error.
func (t *providerTransport) do(req *http.Request, op string) (*http.Response, error) {
	if err := ensureReplayableBody(req); err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, op, err)
	}

	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, retry.Unrecoverable(err)
				}
				req.Body = body
			}
			resp, err := t.httpClient.Do(req)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			if !shouldRetryStatus(resp) {
				return resp, nil
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &retryableStatus{
				status:     resp.StatusCode,
				body:       strings.TrimSpace(string(body)),
				retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		},
		retry.Context(req.Context()),
		retry.Attempts(t.attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(t.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[%s] %s: %v, retrying (attempt %d/%d)", t.provider, op, err, n+1, t.attempts)
		}),
	)
	if err == nil {
		return resp, nil
	}

	var rs *retryableStatus
	if errors.As(err, &rs) {
		return nil, &streamerr.Error{
			Kind:     streamerr.ClassifyHTTP(rs.status, rs.body),
			Provider: t.provider,
			Op:       op,
			Err:      rs,
		}
	}
	return nil, &streamerr.Error{Kind: streamerr.KindTransientError, Provider: t.provider, Op: op, Err: err}
}

// doJSON performs the request and decodes a 2xx body into out. Other statuses are
// classified from the status code and body text.
func (t *providerTransport) doJSON(req *http.Request, op string, out any) error {
	resp, err := t.do(req, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return t.fail(streamerr.KindTransientError, op, fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return t.fail(streamerr.ClassifyHTTP(resp.StatusCode, snippet), op,
			fmt.Errorf("status %d: %s", resp.StatusCode, snippet))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return t.fail(streamerr.KindTransientError, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (t *providerTransport) fail(kind streamerr.Kind, op string, err error) error {
	return &streamerr.Error{Kind: kind, Provider: t.provider, Op: op, Err: err}
}

// failMessage classifies an in-band API error message.
func (t *providerTransport) failMessage(op, msg string) error {
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	return t.fail(streamerr.ClassifyMessage(msg), op, errors.New(msg))
}

func shouldRetryStatus(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

func parseRetryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// retryDelay honours Retry-After, otherwise backs off exponentially; both are capped.
func (t *providerTransport) retryDelay(n uint, err error, _ *retry.Config) time.Duration {
	var rs *retryableStatus
	if errors.As(err, &rs) && rs.retryAfter > 0 {
		return min(rs.retryAfter, maxRetryDelay)
	}
	return min(t.baseDelay*time.Duration(1<<n), maxRetryDelay)
}
