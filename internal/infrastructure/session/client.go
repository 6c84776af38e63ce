package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pulseboard/internal/application/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrLoginFailed 认证服务拒绝了凭证
var ErrLoginFailed = errors.New("login failed")

// Client 消费外部登录接口 POST {base}/login -> {token, userId}
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time

	mu      sync.RWMutex
	session port.Session
}

var _ port.Authenticator = (*Client)(nil)

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		now:     time.Now,
	}
}

func (c *Client) Login(ctx context.Context, creds port.Credentials) (port.Session, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return port.Session{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return port.Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return port.Session{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return port.Session{}, fmt.Errorf("%w: %d %s", ErrLoginFailed, resp.StatusCode, string(b))
	}

	var s port.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return port.Session{}, fmt.Errorf("decode login response: %w", err)
	}
	if s.Token == "" {
		return port.Session{}, fmt.Errorf("%w: empty token", ErrLoginFailed)
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	log.Info().Str("user_id", s.UserID).Msg("session established")
	return s, nil
}

// IsAuthenticated reports whether a token is held and, when it is a JWT
// carrying exp, not yet expired. The signature is not verified here.
func (c *Client) IsAuthenticated() bool {
	tok := c.Token()
	if tok == "" {
		return false
	}
	exp, ok := expiry(tok)
	if !ok {
		return true
	}
	return c.now().Before(exp)
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

// BearerToken returns the token only while the session is valid.
func (c *Client) BearerToken() string {
	if !c.IsAuthenticated() {
		return ""
	}
	return c.Token()
}

func (c *Client) Logout() {
	c.mu.Lock()
	c.session = port.Session{}
	c.mu.Unlock()
}

func expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
