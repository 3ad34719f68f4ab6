package standup

import "strings"

// EventKind identifies an inbound transport event.
type EventKind int

const (
	EventWelcome EventKind = iota + 1
	EventNickInUse
	EventNameReply
	EventPublicMessage
	EventPrivateMessage
	// EventDisconnect is a normal end of the connection, whoever initiated it.
	EventDisconnect
	// EventError is a fatal transport failure such as a failed write.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventWelcome:
		return "welcome"
	case EventNickInUse:
		return "nicknameinuse"
	case EventNameReply:
		return "namreply"
	case EventPublicMessage:
		return "pubmsg"
	case EventPrivateMessage:
		return "privmsg"
	case EventDisconnect:
		return "disconnect"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a parsed inbound protocol event.
//
// Source has the form nick!user@host. Target is the first protocol
// parameter (a channel for public messages, our own nick for replies) and
// Args holds the remaining parameters in order.
type Event struct {
	Kind   EventKind
	Source string
	Target string
	Args   []string
	Tags   map[string]string
	Err    error
}

// Nick returns the part of Source before the first '!'.
func (e Event) Nick() string {
	nick, _, _ := strings.Cut(e.Source, "!")
	return nick
}

// LastArg returns the final argument, or "" when there are none.
func (e Event) LastArg() string {
	if len(e.Args) == 0 {
		return ""
	}
	return e.Args[len(e.Args)-1]
}
