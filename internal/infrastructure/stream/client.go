package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// ErrPeerClosed marks a drop caused by a close frame rather than a
// transport error.
var ErrPeerClosed = errors.New("stream closed by peer")

// Conn is an established socket. Close must unblock ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Events is where connection lifecycle and inbound frames are reported
// (implemented by the dispatch bridge).
type Events interface {
	Publish(category model.Category, title, message string) model.Notification
	PriceUpdate(symbol string, price, percentChange float64) bool
	Connected()
	Disconnected()
	Errored(err error)
	GaveUp()
}

var _ port.StreamControl = (*Client)(nil)

type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxAttempts int
	DialTimeout time.Duration
	// Header is evaluated on every dial.
	Header func() http.Header
}

func (c *Config) applyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// Client 维护唯一的推送连接：任意时刻最多一个 socket、最多一个待触发的重连定时器。
// 第 n 次重连等待 BaseDelay*n；重连次数用尽后进入 Failed，需要手动 Connect 恢复。
type Client struct {
	cfg    Config
	dialer Dialer
	sched  Scheduler
	events Events

	mu         sync.Mutex
	state      State
	conn       Conn
	attempts   int
	timer      Timer
	timerSeq   uint64
	gen        uint64 // bumped per dial and on Disconnect; stale work compares it
	cancelDial context.CancelFunc
	onState    func(State)
}

func NewClient(cfg Config, dialer Dialer, sched Scheduler, events Events) *Client {
	cfg.applyDefaults()
	if sched == nil {
		sched = RealScheduler{}
	}
	return &Client{
		cfg:    cfg,
		dialer: dialer,
		sched:  sched,
		events: events,
	}
}

// OnStateChange registers a hook called on every transition (under the
// client lock, so it must not call back into the client).
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status is the state name, for readers outside this package.
func (c *Client) Status() string { return c.State().String() }

func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) setState(s State) {
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}

// Connect dials unless a socket is already open or being dialed. A manual
// Connect from Idle or Failed starts with a fresh attempt budget.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen, StateConnecting:
		c.mu.Unlock()
		return nil
	case StateIdle, StateFailed:
		c.attempts = 0
	}
	c.stopTimerLocked()
	g := c.beginDialLocked()
	c.mu.Unlock()

	return c.dial(ctx, g)
}

// beginDialLocked moves to Connecting and returns the generation of the new dial.
func (c *Client) beginDialLocked() uint64 {
	c.gen++
	c.setState(StateConnecting)
	return c.gen
}

func (c *Client) dial(ctx context.Context, g uint64) error {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)

	c.mu.Lock()
	if c.gen != g {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancelDial = cancel
	c.mu.Unlock()

	var header http.Header
	if c.cfg.Header != nil {
		header = c.cfg.Header()
	}

	log.Info().Str("url", c.cfg.URL).Msg("stream connecting")
	conn, err := c.dialer.Dial(dctx, c.cfg.URL, header)
	cancel()

	c.mu.Lock()
	if c.gen != g {
		// Disconnect 或新的拨号已经接管
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	c.cancelDial = nil

	if err != nil {
		c.setState(StateReconnecting)
		c.mu.Unlock()

		log.Error().Str("url", c.cfg.URL).Err(err).Msg("stream dial failed")
		// 失败的 socket 先报错误再报断开
		c.events.Errored(err)
		c.events.Disconnected()
		c.scheduleReconnect(g)
		return err
	}

	c.conn = conn
	c.attempts = 0
	c.setState(StateOpen)
	c.mu.Unlock()

	log.Info().Str("url", c.cfg.URL).Msg("stream connected")
	c.events.Connected()
	go c.readLoop(conn, g)
	return nil
}

func (c *Client) readLoop(conn Conn, g uint64) {
	for {
		b, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, g, err)
			return
		}
		if !c.current(conn, g) {
			return
		}
		c.handleMessage(b)
	}
}

func (c *Client) current(conn Conn, g uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == g && c.conn == conn
}

// handleDrop 已打开的 socket 断开：关闭、进入 Reconnecting、发布通知并安排重连
func (c *Client) handleDrop(conn Conn, g uint64, err error) {
	c.mu.Lock()
	if c.gen != g || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.setState(StateReconnecting)
	c.mu.Unlock()

	_ = conn.Close()

	if !errors.Is(err, ErrPeerClosed) {
		c.events.Errored(err)
	}
	log.Warn().Err(err).Msg("stream disconnected")
	c.events.Disconnected()
	c.scheduleReconnect(g)
}

func (c *Client) scheduleReconnect(g uint64) {
	c.mu.Lock()
	if c.gen != g {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()

	if c.attempts >= c.cfg.MaxAttempts {
		c.setState(StateFailed)
		attempts := c.attempts
		c.mu.Unlock()

		log.Error().Int("attempts", attempts).Msg("stream reconnect attempts exhausted")
		c.events.GaveUp()
		return
	}

	c.attempts++
	n := c.attempts
	delay := c.cfg.BaseDelay * time.Duration(n)
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.sched.AfterFunc(delay, func() { c.fireReconnect(g, seq) })
	c.mu.Unlock()

	log.Info().Int("attempt", n).Int("max", c.cfg.MaxAttempts).Dur("delay", delay).Msg("stream reconnect scheduled")
}

func (c *Client) fireReconnect(g, seq uint64) {
	c.mu.Lock()
	if c.gen != g || c.timerSeq != seq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	ng := c.beginDialLocked()
	c.mu.Unlock()

	_ = c.dial(context.Background(), ng)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Disconnect closes the socket and cancels any pending reconnect. Safe in
// any state and idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopTimerLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	if c.state != StateIdle {
		c.setState(StateIdle)
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		log.Info().Str("url", c.cfg.URL).Msg("stream disconnected by client")
	}
}

// RealScheduler uses time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// BearerHeader builds the handshake header from a token source and a
// client id; an empty token omits Authorization.
func BearerHeader(token func() string, clientID string) func() http.Header {
	return func() http.Header {
		h := http.Header{}
		if clientID != "" {
			h.Set("X-Client-ID", clientID)
		}
		if token != nil {
			if t := strings.TrimSpace(token()); t != "" {
				h.Set("Authorization", "Bearer "+t)
			}
		}
		return h
	}
}
