package twitchapi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Helix allows 3 whispers per second and 100 per minute per sender.
const (
	whisperInterval = 600 * time.Millisecond
	whisperBurst    = 3
)

// Whisperer sends whispers from a fixed bot login, caching user ids.
type Whisperer struct {
	helix   *HelixClient
	from    string
	limiter *rate.Limiter

	mu  sync.Mutex
	ids map[string]string
}

// NewWhisperer returns a Whisperer sending as fromLogin.
func NewWhisperer(helix *HelixClient, fromLogin string) *Whisperer {
	return &Whisperer{
		helix:   helix,
		from:    strings.ToLower(fromLogin),
		limiter: rate.NewLimiter(rate.Every(whisperInterval), whisperBurst),
		ids:     make(map[string]string),
	}
}

// Whisper sends text to the user with login to. It waits for the Helix
// whisper rate limit.
func (w *Whisperer) Whisper(ctx context.Context, to, text string) error {
	fromID, err := w.userID(ctx, w.from)
	if err != nil {
		return fmt.Errorf("resolve sender: %w", err)
	}
	toID, err := w.userID(ctx, to)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", to, err)
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	return w.helix.SendWhisper(ctx, fromID, toID, text)
}

func (w *Whisperer) userID(ctx context.Context, login string) (string, error) {
	login = strings.ToLower(login)
	w.mu.Lock()
	id, ok := w.ids[login]
	w.mu.Unlock()
	if ok {
		return id, nil
	}
	id, err := w.helix.GetUserID(ctx, login)
	if err != nil {
		return "", err
	}
	w.mu.Lock()
	w.ids[login] = id
	w.mu.Unlock()
	return id, nil
}
