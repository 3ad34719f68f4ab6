// Package irc implements the standup Transport over a plain IRC connection.
//
// Lines are framed, parsed and encoded by gopkg.in/irc.v4 (Reader/Writer).
// Registration (PASS/NICK/USER) is written synchronously during Connect;
// afterwards a reader goroutine turns inbound lines into standup events and
// a writer goroutine drains an unbounded outbound queue through a
// token-bucket limiter so the burst of private messages at standup start
// does not trip server flood protection. PING is answered internally,
// ahead of the queue, and never reaches the session.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	goirc "gopkg.in/irc.v4"

	"github.com/onnwee/standup-bot/config"
	"github.com/onnwee/standup-bot/standup"
	"github.com/onnwee/standup-bot/telemetry"
)

// Numeric replies the session cares about.
const (
	rplWelcome       = "001"
	rplNamReply      = "353"
	errNicknameInUse = "433"
)

const (
	defaultDialTimeout = 30 * time.Second
	flushTimeout       = 5 * time.Second
	eventBufferSize    = 64
)

// Client is a standup.Transport speaking RFC 1459/2812 IRC.
type Client struct {
	addr      string
	useTLS    bool
	tlsConfig *tls.Config
	nick      string
	password  string
	limiter   *rate.Limiter
	dial      func(ctx context.Context, network, addr string) (net.Conn, error)
	log       *slog.Logger

	conn   net.Conn
	wire   *goirc.Conn
	wmu    sync.Mutex // serializes writes to wire.Writer
	events chan standup.Event

	qmu   sync.Mutex
	queue []*goirc.Message
	wake  chan struct{}

	quitting  atomic.Bool
	closing   chan struct{}
	writeDone chan struct{}
	writeCtx  context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit sets the outbound flood control. interval <= 0 disables it.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		limit := rate.Inf
		if interval > 0 {
			limit = rate.Every(interval)
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithTLSConfig overrides the TLS settings used when TLS is enabled.
func WithTLSConfig(tc *tls.Config) Option {
	return func(c *Client) { c.tlsConfig = tc }
}

// WithDialer replaces the plain TCP dialer.
func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.dial = dial }
}

// New returns an unconnected client for cfg.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		addr:      cfg.Address(),
		useTLS:    cfg.TLS,
		nick:      cfg.Nickname,
		password:  cfg.Password,
		log:       slog.Default().With(slog.String("component", "irc")),
		events:    make(chan standup.Event, eventBufferSize),
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	c.dial = (&net.Dialer{Timeout: defaultDialTimeout}).DialContext
	WithRateLimit(cfg.FloodInterval, cfg.FloodBurst)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the server, registers and starts the read/write loops.
func (c *Client) Connect(ctx context.Context) error {
	c.log = telemetry.LoggerWithCorr(ctx).With(slog.String("component", "irc"))
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	if c.useTLS {
		tc := c.tlsConfig
		if tc == nil {
			host, _, _ := net.SplitHostPort(c.addr)
			tc = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		tlsConn := tls.Client(conn, tc)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", c.addr, err)
		}
		conn = tlsConn
	}

	register := []*goirc.Message{
		{Command: "NICK", Params: []string{c.nick}},
		{Command: "USER", Params: []string{c.nick, "0", "*", c.nick}},
	}
	if c.password != "" {
		register = append([]*goirc.Message{{Command: "PASS", Params: []string{c.password}}}, register...)
	}
	ic := goirc.NewConn(conn)
	ic.Reader.DebugCallback = func(line string) {
		c.log.Debug("recv", slog.String("line", strings.TrimRight(line, "\r\n")))
	}
	ic.Writer.DebugCallback = func(line string) {
		c.log.Debug("send", slog.String("line", redact(line)))
	}
	for _, m := range register {
		if err := ic.WriteMessage(m); err != nil {
			_ = conn.Close()
			return fmt.Errorf("register: %w", err)
		}
	}
	c.conn = conn
	c.wire = ic

	c.writeCtx, c.cancel = context.WithCancel(context.Background())
	go c.readLoop()
	go c.writeLoop()
	return nil
}

// Events returns the inbound event stream.
func (c *Client) Events() <-chan standup.Event { return c.events }

// Join enqueues JOIN.
func (c *Client) Join(channel string) error {
	return c.enqueue(&goirc.Message{Command: "JOIN", Params: []string{channel}})
}

// RequestNames enqueues NAMES.
func (c *Client) RequestNames(channel string) error {
	return c.enqueue(&goirc.Message{Command: "NAMES", Params: []string{channel}})
}

// Send enqueues a PRIVMSG to a channel or nick.
func (c *Client) Send(target, text string) error {
	return c.enqueue(&goirc.Message{Command: "PRIVMSG", Params: []string{target, text}})
}

// ChangeNick enqueues NICK.
func (c *Client) ChangeNick(nick string) error {
	return c.enqueue(&goirc.Message{Command: "NICK", Params: []string{nick}})
}

// Quit enqueues QUIT. The server closing the socket afterwards is reported
// as a clean disconnect.
func (c *Client) Quit(reason string) error {
	c.quitting.Store(true)
	return c.enqueue(&goirc.Message{Command: "QUIT", Params: []string{reason}})
}

// Close flushes queued lines (bounded by a short timeout) and closes the
// connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		if c.conn == nil {
			return
		}
		select {
		case <-c.writeDone:
		case <-time.After(flushTimeout):
			c.log.Warn("outbound flush timed out", slog.Int("dropped", c.pending()))
		}
		c.cancel()
		err = c.conn.Close()
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// enqueue appends m to the outbound queue. The queue grows as needed; the
// limiter, not its capacity, paces the writer.
func (c *Client) enqueue(m *goirc.Message) error {
	select {
	case <-c.closing:
		return standup.ErrTransportClosed
	default:
	}
	c.qmu.Lock()
	c.queue = append(c.queue, m)
	c.qmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *Client) dequeue() (*goirc.Message, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	m := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return m, true
}

// pending reports the number of queued outbound lines.
func (c *Client) pending() int {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue)
}

func (c *Client) write(m *goirc.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.wire.WriteMessage(m)
}

func (c *Client) writeLoop() {
	defer close(c.writeDone)
	for {
		if m, ok := c.dequeue(); ok {
			if !c.flushOne(m) {
				return
			}
			continue
		}
		select {
		case <-c.wake:
		case <-c.closing:
			for {
				m, ok := c.dequeue()
				if !ok {
					return
				}
				if !c.flushOne(m) {
					return
				}
			}
		}
	}
}

func (c *Client) flushOne(m *goirc.Message) bool {
	if err := c.limiter.Wait(c.writeCtx); err != nil {
		return false
	}
	if err := c.write(m); err != nil {
		c.emit(standup.Event{Kind: standup.EventError, Err: fmt.Errorf("write %s: %w", m.Command, err)})
		return false
	}
	return true
}

func (c *Client) readLoop() {
	for {
		m, err := c.wire.ReadMessage()
		if isParseError(err) {
			c.log.Debug("unparseable line", slog.Any("err", err))
			continue
		}
		if err != nil {
			c.emit(standup.Event{Kind: standup.EventDisconnect, Err: c.readErr(err)})
			return
		}
		c.dispatch(m)
	}
}

// isParseError reports a malformed line; the stream itself is still usable.
func isParseError(err error) bool {
	return errors.Is(err, goirc.ErrMissingDataAfterPrefix) ||
		errors.Is(err, goirc.ErrMissingDataAfterTags) ||
		errors.Is(err, goirc.ErrMissingCommand)
}

// readErr maps the end of the read stream to the error attached to the
// disconnect event; EOF and our own quit are reported without error.
func (c *Client) readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.quitting.Load() {
		return nil
	}
	return err
}

func (c *Client) dispatch(m *goirc.Message) {
	switch m.Command {
	case "PING":
		// Written directly so a long outbound backlog cannot delay it.
		if err := c.write(&goirc.Message{Command: "PONG", Params: m.Params}); err != nil {
			c.log.Warn("pong", slog.Any("err", err))
		}
	case rplWelcome:
		c.emit(toEvent(standup.EventWelcome, m))
	case errNicknameInUse:
		c.emit(toEvent(standup.EventNickInUse, m))
	case rplNamReply:
		c.emit(toEvent(standup.EventNameReply, m))
	case "PRIVMSG":
		kind := standup.EventPrivateMessage
		if len(m.Params) > 0 && isChannel(m.Params[0]) {
			kind = standup.EventPublicMessage
		}
		c.emit(toEvent(kind, m))
	case "ERROR":
		c.log.Info("server error", slog.Any("params", m.Params))
	default:
		c.log.Debug("unhandled", slog.String("command", m.Command))
	}
}

// emit delivers ev unless the client is closing and nobody is listening.
func (c *Client) emit(ev standup.Event) {
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

func toEvent(kind standup.EventKind, m *goirc.Message) standup.Event {
	ev := standup.Event{Kind: kind, Source: source(m)}
	if len(m.Params) > 0 {
		ev.Target = m.Params[0]
		ev.Args = append([]string(nil), m.Params[1:]...)
	}
	if len(m.Tags) > 0 {
		ev.Tags = make(map[string]string, len(m.Tags))
		for k, v := range m.Tags {
			ev.Tags[k] = string(v)
		}
	}
	return ev
}

func source(m *goirc.Message) string {
	if m.Prefix == nil {
		return ""
	}
	s := m.Prefix.Name
	if m.Prefix.User != "" {
		s += "!" + m.Prefix.User
	}
	if m.Prefix.Host != "" {
		s += "@" + m.Prefix.Host
	}
	return s
}

// redact hides credentials in outbound debug logging.
func redact(line string) string {
	switch {
	case strings.HasPrefix(line, "PASS "):
		return "PASS ***"
	case strings.HasPrefix(strings.ToUpper(line), "PRIVMSG NICKSERV :IDENTIFY"):
		return "PRIVMSG NickServ :IDENTIFY ***"
	}
	return line
}

func isChannel(target string) bool {
	return target != "" && strings.ContainsRune("#&+!", rune(target[0]))
}
