package standup

import (
	"context"
	"errors"
	"time"
)

// ErrTransportClosed is returned by transports once Close has been called.
var ErrTransportClosed = errors.New("transport closed")

// Transport is the connection a Session drives. Command methods only
// enqueue a line; they must not wait for the server. Events are delivered
// on the channel returned by Events after Connect succeeds.
type Transport interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Join(channel string) error
	RequestNames(channel string) error
	Send(target, text string) error
	ChangeNick(nick string) error
	Quit(reason string) error
	Close() error
}

// Clock schedules the termination timer.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
