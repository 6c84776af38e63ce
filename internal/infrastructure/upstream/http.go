package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pulseboard/internal/application/port"
)

const maxErrorBody = 512

// NewHTTPClient returns the client shared by the REST sources.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON issues a GET and decodes a 2xx body into out. Non-2xx responses
// become *port.StatusError.
func GetJSON(ctx context.Context, client *http.Client, source, endpoint string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &port.StatusError{Source: source, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w: %v", source, port.ErrBadPayload, err)
	}
	return nil
}

// RequireKey returns a ConfigError when key is empty.
func RequireKey(source, key string) error {
	if key == "" {
		return &port.ConfigError{Source: source, Err: port.ErrMissingAPIKey}
	}
	return nil
}
