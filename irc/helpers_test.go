package irc

import (
	"testing"
	"time"

	goirc "gopkg.in/irc.v4"
)

func mustParse(t *testing.T, line string) *goirc.Message {
	t.Helper()
	m, err := goirc.ParseMessage(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return m
}

type chanClock chan time.Time

func (c chanClock) After(time.Duration) <-chan time.Time { return c }
