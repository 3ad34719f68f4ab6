package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/standup-bot/config"
	"github.com/onnwee/standup-bot/standup"
	"github.com/onnwee/standup-bot/telemetry"
	"github.com/onnwee/standup-bot/twitchapi"
)

var (
	// ErrNickChangeUnsupported is returned by ChangeNick on Twitch.
	ErrNickChangeUnsupported = errors.New("twitch does not support nickname changes")
	// ErrWhispersUnavailable is returned when a user target is sent to
	// without a configured Whisperer.
	ErrWhispersUnavailable = errors.New("twitch whispers need a Helix client id")
)

const eventBufferSize = 64

// Whisperer delivers a private message to a Twitch login.
type Whisperer interface {
	Whisper(ctx context.Context, to, text string) error
}

// Option customizes a TwitchTransport.
type Option func(*TwitchTransport)

// WithWhisperer replaces the Helix-backed whisperer.
func WithWhisperer(w Whisperer) Option {
	return func(t *TwitchTransport) { t.whisperer = w }
}

// TwitchTransport is a standup.Transport backed by go-twitch-irc. Channel
// messages go over chat; private messages go through the Whisperer.
type TwitchTransport struct {
	cfg       *config.Config
	channel   string
	client    *twitch.Client
	whisperer Whisperer
	events    chan standup.Event
	log       *slog.Logger
	ctx       context.Context

	connected atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
}

// NewTwitchTransport returns an unconnected transport for cfg. Whispers use
// Helix when cfg.TwitchClientID is set.
func NewTwitchTransport(cfg *config.Config, opts ...Option) *TwitchTransport {
	t := &TwitchTransport{
		cfg:     cfg,
		channel: strings.ToLower(strings.TrimPrefix(cfg.Channel, "#")),
		events:  make(chan standup.Event, eventBufferSize),
		log:     slog.Default().With(slog.String("component", "twitch")),
		ctx:     context.Background(),
		closing: make(chan struct{}),
	}
	if cfg.TwitchClientID != "" {
		t.whisperer = twitchapi.NewWhisperer(&twitchapi.HelixClient{
			ClientID: cfg.TwitchClientID,
			Token:    cfg.Password,
			BaseURL:  cfg.HelixURL,
		}, cfg.Nickname)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect starts the twitch client in the background. Connection failures
// before the server greets us are delivered as standup.EventError.
func (t *TwitchTransport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.ctx = ctx
	t.log = telemetry.LoggerWithCorr(ctx).With(slog.String("component", "twitch"))

	client := twitch.NewClient(t.cfg.Nickname, oauthToken(t.cfg.Password))
	client.IrcAddress = t.cfg.Address()
	client.TLS = t.cfg.TLS
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}

	client.OnConnect(func() {
		t.connected.Store(true)
		t.emit(standup.Event{Kind: standup.EventWelcome})
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		t.emit(privateMessageEvent(msg))
	})
	client.OnWhisperMessage(func(msg twitch.WhisperMessage) {
		t.emit(whisperEvent(msg, t.cfg.Nickname))
	})
	client.OnNamesMessage(func(msg twitch.NamesMessage) {
		t.emit(namesEvent(msg, t.cfg.Nickname))
	})
	t.client = client

	go func() {
		err := client.Connect()
		t.emit(t.connectResult(err))
	}()
	return nil
}

// connectResult maps the return of the blocking twitch Connect call.
func (t *TwitchTransport) connectResult(err error) standup.Event {
	switch {
	case err == nil, errors.Is(err, twitch.ErrClientDisconnected):
		return standup.Event{Kind: standup.EventDisconnect}
	case !t.connected.Load():
		return standup.Event{Kind: standup.EventError, Err: fmt.Errorf("twitch connect: %w", err)}
	default:
		return standup.Event{Kind: standup.EventDisconnect, Err: err}
	}
}

// Events returns the inbound event stream.
func (t *TwitchTransport) Events() <-chan standup.Event { return t.events }

// Join joins channel (the leading '#' is optional).
func (t *TwitchTransport) Join(channel string) error {
	if t.client == nil {
		return standup.ErrTransportClosed
	}
	t.client.Join(strings.TrimPrefix(channel, "#"))
	return nil
}

// RequestNames is a no-op: NAMES follow JOIN when the membership
// capability is requested.
func (t *TwitchTransport) RequestNames(channel string) error {
	t.log.Debug("names arrive with join; skipping explicit request", slog.String("channel", channel))
	return nil
}

// Send says text in a channel, or whispers it through Helix when target is
// a user. Whispers block for the Helix rate limit.
func (t *TwitchTransport) Send(target, text string) error {
	if t.client == nil {
		return standup.ErrTransportClosed
	}
	select {
	case <-t.closing:
		return standup.ErrTransportClosed
	default:
	}
	if strings.HasPrefix(target, "#") {
		t.client.Say(strings.TrimPrefix(target, "#"), text)
		return nil
	}
	if t.whisperer == nil {
		return fmt.Errorf("%w (target %s)", ErrWhispersUnavailable, target)
	}
	if err := t.whisperer.Whisper(t.ctx, target, text); err != nil {
		return fmt.Errorf("whisper %s: %w", target, err)
	}
	t.log.Debug("whisper sent", slog.String("to", target))
	return nil
}

// ChangeNick always fails on Twitch.
func (t *TwitchTransport) ChangeNick(nick string) error {
	return fmt.Errorf("%w (wanted %q)", ErrNickChangeUnsupported, nick)
}

// Quit disconnects the client; the reason is not transmitted by Twitch.
func (t *TwitchTransport) Quit(reason string) error {
	if t.client == nil {
		return standup.ErrTransportClosed
	}
	t.log.Info("quit", slog.String("reason", reason))
	return t.client.Disconnect()
}

// Close stops event delivery. It does not wait for the twitch client.
func (t *TwitchTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closing) })
	return nil
}

func (t *TwitchTransport) emit(ev standup.Event) {
	select {
	case t.events <- ev:
	case <-t.closing:
	}
}

func oauthToken(password string) string {
	if password == "" || strings.HasPrefix(password, "oauth:") {
		return password
	}
	return "oauth:" + password
}

// twitchSource builds a nick!user@host source the way Twitch formats it.
func twitchSource(login string) string {
	return login + "!" + login + "@" + login + ".tmi.twitch.tv"
}

func privateMessageEvent(msg twitch.PrivateMessage) standup.Event {
	return standup.Event{
		Kind:   standup.EventPublicMessage,
		Source: twitchSource(msg.User.Name),
		Target: "#" + msg.Channel,
		Args:   []string{msg.Message},
		Tags:   msg.Tags,
	}
}

func whisperEvent(msg twitch.WhisperMessage, self string) standup.Event {
	return standup.Event{
		Kind:   standup.EventPrivateMessage,
		Source: twitchSource(msg.User.Name),
		Target: self,
		Args:   []string{msg.Message},
		Tags:   msg.Tags,
	}
}

func namesEvent(msg twitch.NamesMessage, self string) standup.Event {
	return standup.Event{
		Kind:   standup.EventNameReply,
		Target: self,
		Args:   []string{"=", "#" + msg.Channel, strings.Join(msg.Users, " ")},
	}
}
