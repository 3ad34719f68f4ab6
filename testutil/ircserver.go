// Package testutil provides test doubles shared across packages.
package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeIRCServer is a scripted single-client IRC server on 127.0.0.1.
// Tests read what the client wrote with Expect and push server lines with
// Sendf.
type FakeIRCServer struct {
	Addr string

	ln     net.Listener
	connCh chan net.Conn
	lines  chan string

	mu   sync.Mutex
	conn net.Conn
}

// NewFakeIRCServer starts listening and accepts one client in the
// background. The listener and connection are closed on test cleanup.
func NewFakeIRCServer(t *testing.T) *FakeIRCServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &FakeIRCServer{
		Addr:   ln.Addr().String(),
		ln:     ln,
		connCh: make(chan net.Conn, 1),
		lines:  make(chan string, 256),
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.connCh <- conn
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			s.lines <- strings.TrimRight(sc.Text(), "\r")
		}
		close(s.lines)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		s.CloseClient()
	})
	return s
}

// HostPort splits Addr for building a config.
func (s *FakeIRCServer) HostPort(t *testing.T) (string, int) {
	t.Helper()
	host, port, err := net.SplitHostPort(s.Addr)
	if err != nil {
		t.Fatalf("split %q: %v", s.Addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port %q: %v", port, err)
	}
	return host, p
}

// WaitClient blocks until the client has connected.
func (s *FakeIRCServer) WaitClient(t *testing.T) {
	t.Helper()
	select {
	case conn := <-s.connCh:
		s.connCh <- conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
	}
}

// Next returns the next line written by the client.
func (s *FakeIRCServer) Next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-s.lines:
		if !ok {
			t.Fatal("client connection closed")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client line")
	}
	return ""
}

// Expect reads the next client line and fails unless it equals want.
func (s *FakeIRCServer) Expect(t *testing.T, want string) {
	t.Helper()
	if got := s.Next(t); got != want {
		t.Fatalf("client sent %q, want %q", got, want)
	}
}

// Sendf writes one line to the client, appending CRLF.
func (s *FakeIRCServer) Sendf(t *testing.T, format string, args ...any) {
	t.Helper()
	s.WaitClient(t)
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if _, err := fmt.Fprintf(conn, format+"\r\n", args...); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

// CloseClient drops the client connection, as a server does after QUIT.
func (s *FakeIRCServer) CloseClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
