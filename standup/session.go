package standup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/standup-bot/config"
	"github.com/onnwee/standup-bot/telemetry"
)

// ErrNickRetriesExhausted is returned when the server keeps rejecting every
// nickname variant we try.
var ErrNickRetriesExhausted = errors.New("nickname retries exhausted")

const interruptReason = "Interrupted"

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for the termination timer.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithObserver registers fn to receive a Snapshot after every state change
// and every new participant. fn runs on the event loop and must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observer = fn }
}

// Session runs one standup over a Transport.
type Session struct {
	cfg       *config.Config
	transport Transport
	clock     Clock
	observer  func(Snapshot)
	log       *slog.Logger

	users       map[string]struct{}
	nick        string
	nickRetries int
	state       State

	started      bool
	participants map[string]struct{}

	timer <-chan time.Time
	armed bool
	ended bool
}

// New prepares a session for cfg. cfg is expected to have passed Validate.
func New(cfg *config.Config, t Transport, opts ...Option) *Session {
	s := &Session{
		cfg:          cfg,
		transport:    t,
		clock:        realClock{},
		log:          slog.Default(),
		users:        toSet(cfg.Users),
		nick:         cfg.Nickname,
		participants: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state. Only meaningful from the
// goroutine running Run, or after Run has returned.
func (s *Session) State() State { return s.state }

// Participants returns the sorted set of users who spoke during the standup.
func (s *Session) Participants() []string { return sortedKeys(s.participants) }

// Run connects and processes events until the connection ends. A normal
// disconnect returns nil. Connection failures, transport write failures and
// nickname exhaustion are returned as errors. Cancelling ctx sends a quit
// and returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	s.log = telemetry.LoggerWithCorr(ctx).With(slog.String("channel", s.cfg.Channel))
	defer func() {
		if err := s.transport.Close(); err != nil {
			s.log.Debug("transport close", slog.Any("err", err))
		}
	}()

	s.setState(StateConnecting)
	s.log.Info("connecting", slog.String("addr", s.cfg.Address()), slog.String("nick", s.nick), slog.Bool("tls", s.cfg.TLS))
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("connect to %s: %w", s.cfg.Address(), err)
	}
	s.setState(StateAwaitingWelcome)

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("interrupted; sending quit")
			if err := s.transport.Quit(interruptReason); err != nil {
				s.log.Warn("quit on interrupt", slog.Any("err", err))
			}
			s.setState(StateDisconnected)
			return ctx.Err()
		case <-s.timer:
			s.timer = nil
			if err := s.finish(); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				s.log.Info("event stream closed")
				s.setState(StateDisconnected)
				return nil
			}
			done, err := s.handle(ev)
			if err != nil {
				s.setState(StateDisconnected)
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// handle dispatches one event. done reports a normal end of the session.
func (s *Session) handle(ev Event) (done bool, err error) {
	switch ev.Kind {
	case EventWelcome:
		return false, s.onWelcome()
	case EventNickInUse:
		return false, s.onNickInUse()
	case EventNameReply:
		return false, s.onNameReply(ev)
	case EventPublicMessage:
		s.onPublicMessage(ev)
		return false, nil
	case EventPrivateMessage:
		s.log.Info("received privmsg", slog.String("source", ev.Source), slog.String("target", ev.Target), slog.Any("args", ev.Args))
		return false, nil
	case EventDisconnect:
		if ev.Err != nil {
			s.log.Info("disconnected", slog.Any("err", ev.Err))
		} else {
			s.log.Info("disconnected")
		}
		s.setState(StateDisconnected)
		return true, nil
	case EventError:
		return true, fmt.Errorf("transport: %w", ev.Err)
	default:
		s.log.Debug("ignoring event", slog.String("kind", ev.Kind.String()))
		return false, nil
	}
}

func (s *Session) onWelcome() error {
	if s.armed {
		s.log.Debug("duplicate welcome ignored")
		return nil
	}
	s.setState(StateJoining)

	// No wait for a NickServ acknowledgement before joining.
	if pw := s.cfg.NickServPassword; pw != "" {
		s.log.Info("identifying with NickServ")
		if err := s.transport.Send("NickServ", "IDENTIFY "+pw); err != nil {
			return fmt.Errorf("nickserv identify: %w", err)
		}
	}

	s.log.Info("joining")
	if err := s.transport.Join(s.cfg.Channel); err != nil {
		return fmt.Errorf("join %s: %w", s.cfg.Channel, err)
	}
	s.log.Info("requesting names")
	if err := s.transport.RequestNames(s.cfg.Channel); err != nil {
		return fmt.Errorf("names %s: %w", s.cfg.Channel, err)
	}

	s.log.Info("disconnecting after standup window", slog.Duration("duration", s.cfg.Duration))
	s.timer = s.clock.After(s.cfg.Duration)
	s.armed = true
	s.setState(StateAwaitingNames)
	return nil
}

func (s *Session) onNickInUse() error {
	if limit := s.cfg.MaxNickRetries; limit > 0 && s.nickRetries >= limit {
		return fmt.Errorf("%w: %d attempts, last tried %q", ErrNickRetriesExhausted, s.nickRetries, s.nick)
	}
	s.nickRetries++
	s.nick += "_"
	telemetry.IncNickRetries()
	s.log.Warn("nickname in use; retrying", slog.String("nick", s.nick), slog.Int("attempt", s.nickRetries))
	if err := s.transport.ChangeNick(s.nick); err != nil {
		return fmt.Errorf("change nick to %s: %w", s.nick, err)
	}
	s.publish()
	return nil
}

func (s *Session) onNameReply(ev Event) error {
	// Servers may split or repeat the member list; only the first counts.
	if s.started {
		telemetry.IncNameRepliesIgnored()
		s.log.Debug("name reply after standup start ignored")
		return nil
	}
	s.started = true
	s.setState(StateStandupActive)

	present := Present(ParseNames(ev.LastArg()), s.cfg.Users)
	absent := Absent(s.cfg.Users, present)
	telemetry.SetAttendance(len(present), len(absent))
	s.log.Info("starting standup", slog.Any("present", present), slog.Any("absent", absent))

	if err := s.say(s.cfg.Channel, PingLine(present, s.cfg.Topic), "ping"); err != nil {
		return err
	}
	if err := s.say(s.cfg.Channel, PromptLine, "prompt"); err != nil {
		return err
	}
	invite := InviteLine(s.cfg.Topic, s.cfg.Channel)
	for _, user := range absent {
		if err := s.say(user, invite, "private"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) onPublicMessage(ev Event) {
	s.log.Debug("received pubmsg", slog.String("source", ev.Source), slog.String("target", ev.Target), slog.Any("args", ev.Args))
	if !s.started || s.ended {
		return
	}
	if ev.Target != "" && !strings.EqualFold(ev.Target, s.cfg.Channel) {
		return
	}
	nick := ev.Nick()
	if _, ok := s.users[nick]; !ok {
		return
	}
	if _, seen := s.participants[nick]; seen {
		return
	}
	s.participants[nick] = struct{}{}
	telemetry.SetParticipants(len(s.participants))
	s.log.Info("participant", slog.String("nick", nick))
	s.publish()
}

// finish thanks participants and quits. It runs once.
func (s *Session) finish() error {
	if s.ended {
		return nil
	}
	s.ended = true
	s.setState(StateEnding)

	if len(s.participants) > 0 {
		if err := s.say(s.cfg.Channel, ThanksLine(s.Participants()), "thanks"); err != nil {
			return err
		}
	}
	s.log.Info("standup over; quitting", slog.Int("participants", len(s.participants)))
	if err := s.transport.Quit(QuitReason); err != nil {
		return fmt.Errorf("quit: %w", err)
	}
	return nil
}

func (s *Session) say(target, text, kind string) error {
	if err := s.transport.Send(target, text); err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, target, err)
	}
	telemetry.CountSent(kind)
	return nil
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.log.Debug("state", slog.String("from", s.state.String()), slog.String("to", st.String()))
	s.state = st
	s.publish()
}

func (s *Session) publish() {
	if s.observer == nil {
		return
	}
	s.observer(Snapshot{
		State:        s.state.String(),
		Channel:      s.cfg.Channel,
		Nickname:     s.nick,
		Started:      s.started,
		Participants: s.Participants(),
	})
}
