package port

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimited matches any StatusError carrying HTTP 429.
var ErrRateLimited = errors.New("upstream rate limited")

// ErrMissingAPIKey 缺少 API key（配置错误，不可重试）
var ErrMissingAPIKey = errors.New("api key is not configured")

// ErrBadPayload 上游返回了无法解析的响应（不重试）
var ErrBadPayload = errors.New("invalid upstream response")

// ConfigError is fatal for the component that raised it.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: %d %s", e.Source, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is worth retrying: network failures
// (client timeouts included), HTTP 5xx and HTTP 429. Configuration errors,
// undecodable payloads and cancellations are not. A caller whose own
// context expired must check ctx.Err() itself; the error alone cannot tell
// that apart from an http.Client timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	if errors.Is(err, ErrBadPayload) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}
