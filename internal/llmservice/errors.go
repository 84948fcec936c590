package llmservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"lecture-rag/internal/backoff"

	"github.com/openai/openai-go/v3"
)

// langchaingo reports HTTP failures only through the error text.
var statusCodeRe = regexp.MustCompile(`(?i)status(?: code)?[: ]+(\d{3})`)

// Classify wraps err in a *backoff.RateLimitError for HTTP 429 and in a
// *backoff.TransientError for 5xx responses and network timeouts, so a
// backoff.Controller retries them. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || backoff.IsRetryable(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return classifyStatus(apiErr.StatusCode, header, err)
	}

	if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return classifyStatus(code, nil, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &backoff.TransientError{Err: err}
	}
	return err
}

func classifyStatus(code int, header http.Header, err error) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &backoff.RateLimitError{RetryAfter: RetryAfter(header, time.Now()), Err: err}
	case code >= 500 && code <= 599:
		return &backoff.TransientError{Err: err}
	}
	return err
}

// RetryAfter reads the server's requested wait from retry-after-ms or
// Retry-After (seconds or an HTTP date). It returns zero when neither is usable.
func RetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	if v := header.Get("Retry-After-Ms"); v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil && ms > 0 {
			return time.Duration(ms * float64(time.Millisecond))
		}
	}
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
