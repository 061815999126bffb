package http

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/handiism/streetgrab/internal/retry"
)

// IsTransientStatus reports whether a status code is worth retrying:
// 408, 429 and every 5xx.
func IsTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// Classify maps an error returned by Client into a retry outcome.
//
//   - Cancellation of the caller's context is permanent
//   - Timeouts, connection resets and truncated bodies are transient
//   - *StatusError follows IsTransientStatus and carries Retry-After
//   - Anything else (malformed URL, undecodable body) is permanent
func Classify(err error) retry.Outcome {
	if err == nil {
		return retry.Outcome{Kind: retry.OK}
	}

	var se *StatusError
	if errors.As(err, &se) {
		if IsTransientStatus(se.Code) {
			return retry.Outcome{Kind: retry.Transient, RetryAfter: se.RetryAfter}
		}
		return retry.Outcome{Kind: retry.Permanent}
	}

	if errors.Is(err, context.Canceled) {
		return retry.Outcome{Kind: retry.Permanent}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return retry.Outcome{Kind: retry.Transient}
	}

	var opErr *net.OpError
	switch {
	case errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return retry.Outcome{Kind: retry.Transient}
	}

	return retry.Outcome{Kind: retry.Permanent}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
