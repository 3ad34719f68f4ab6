package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/onnwee/standup-bot/chat"
	"github.com/onnwee/standup-bot/config"
	"github.com/onnwee/standup-bot/irc"
	"github.com/onnwee/standup-bot/standup"
	"github.com/onnwee/standup-bot/testutil"
)

type manualClock struct{ ch chan time.Time }

func (c manualClock) After(time.Duration) <-chan time.Time { return c.ch }

func TestRootCommandRequiresArgs(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"irc.example.org", "team", "bot"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without any nickname to ping")
	}
}

func TestFlagDefaults(t *testing.T) {
	cmd := NewRootCommand()
	f := cmd.Flags()
	tests := map[string]string{
		config.KeyPort:            "6667",
		config.KeyStandupDuration: "900",
		config.KeyTopic:           "Standup meeting",
		config.KeySSL:             "false",
		config.KeyTransport:       "irc",
		config.KeyHelixURL:        config.DefaultHelixURL,
		config.KeyTwitchClientID:  "",
	}
	for name, want := range tests {
		fl := f.Lookup(name)
		if fl == nil {
			t.Errorf("flag --%s missing", name)
			continue
		}
		if fl.DefValue != want {
			t.Errorf("--%s default = %q, want %q", name, fl.DefValue, want)
		}
	}
}

func TestInitConfigLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "standup.yaml")
	if err := os.WriteFile(file, []byte("topic: Daily sync\nstandup-duration: 120\nport: 7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STANDUP_PORT", "6697")

	v := viper.New()
	cmd := newRootCommand(v)
	if err := cmd.ParseFlags([]string{"--config", file, "--ssl"}); err != nil {
		t.Fatal(err)
	}
	if err := initConfig(cmd, v); err != nil {
		t.Fatalf("initConfig: %v", err)
	}
	cfg, err := config.Load(v, []string{"irc.example.org", "team", "bot", "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Topic != "Daily sync" {
		t.Errorf("Topic = %q, want value from file", cfg.Topic)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("Duration = %s, want 2m from file", cfg.Duration)
	}
	if cfg.Port != 6697 {
		t.Errorf("Port = %d, want env to beat file", cfg.Port)
	}
	if !cfg.TLS {
		t.Error("TLS flag not applied")
	}
}

func TestInitConfigMissingFile(t *testing.T) {
	v := viper.New()
	cmd := newRootCommand(v)
	if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	if err := initConfig(cmd, v); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestNewTransport(t *testing.T) {
	cfg := &config.Config{Server: "irc.example.org", Port: 6667, Nickname: "bot", Channel: "#team", Transport: config.TransportIRC}
	tr, err := NewTransport(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*irc.Client); !ok {
		t.Errorf("irc transport type = %T", tr)
	}

	cfg.Transport = config.TransportTwitch
	tr, err = NewTransport(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*chat.TwitchTransport); !ok {
		t.Errorf("twitch transport type = %T", tr)
	}

	cfg.Transport = "carrier-pigeon"
	if _, err := NewTransport(cfg); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestRunSessionAgainstFakeServer(t *testing.T) {
	srv := testutil.NewFakeIRCServer(t)
	host, port := srv.HostPort(t)
	cfg := &config.Config{
		Server:         host,
		Port:           port,
		Nickname:       "standupbot",
		Channel:        "#team",
		Topic:          config.DefaultTopic,
		Duration:       15 * time.Minute,
		Users:          []string{"alice", "bob", "carol"},
		Transport:      config.TransportIRC,
		MaxNickRetries: 2,
		FloodBurst:     10,
	}

	clock := manualClock{ch: make(chan time.Time, 1)}
	fireOnTwo := standup.WithObserver(func(s standup.Snapshot) {
		if len(s.Participants) == 2 {
			select {
			case clock.ch <- time.Now():
			default:
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runSession(ctx, cfg, irc.New(cfg), standup.WithClock(clock), fireOnTwo)
	}()

	srv.Expect(t, "NICK standupbot")
	srv.Expect(t, "USER standupbot 0 * standupbot")
	srv.Sendf(t, ":irc.example.org 433 * standupbot :Nickname is already in use")
	srv.Expect(t, "NICK standupbot_")
	srv.Sendf(t, ":irc.example.org 001 standupbot_ :Welcome")
	srv.Expect(t, "JOIN #team")
	srv.Expect(t, "NAMES #team")

	srv.Sendf(t, ":irc.example.org 353 standupbot_ = #team :standupbot_ @alice +dave carol")
	srv.Sendf(t, ":irc.example.org 353 standupbot_ = #team :@alice +dave carol")
	srv.Expect(t, "PRIVMSG #team :alice, carol: Standup meeting")
	srv.Expect(t, "PRIVMSG #team :"+standup.PromptLine)
	srv.Expect(t, "PRIVMSG bob :Standup meeting in #team")

	srv.Sendf(t, ":carol!~carol@host PRIVMSG #team :reviewing the release branch")
	srv.Sendf(t, ":dave!~dave@host PRIVMSG #team :not on the list")
	srv.Sendf(t, ":alice!~alice@host PRIVMSG #team :fixing CI")

	srv.Expect(t, "PRIVMSG #team :Thank you, alice, carol!")
	srv.Expect(t, "QUIT :Standup ended!")
	srv.CloseClient()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSession: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end after server closed the connection")
	}
}
