// Package config assembles the typed Config for a standup run from
// positional arguments and a viper store (flags, STANDUP_* environment
// variables and an optional config file). Use Validate before building a
// session.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort           = 6667
	DefaultTopic          = "Standup meeting"
	DefaultDuration       = 15 * time.Minute
	DefaultMaxNickRetries = 10
	DefaultFloodBurst     = 5
	DefaultFloodInterval  = 500 * time.Millisecond
	DefaultHelixURL       = "https://api.twitch.tv/helix"

	TransportIRC    = "irc"
	TransportTwitch = "twitch"
)

// Viper keys; they match the flag names.
const (
	KeyPort             = "port"
	KeyPassword         = "password"
	KeySSL              = "ssl"
	KeyNickServPassword = "nickserv-password"
	KeyStandupDuration  = "standup-duration"
	KeyTopic            = "topic"
	KeyTransport        = "transport"
	KeyMaxNickRetries   = "max-nick-retries"
	KeyFloodBurst       = "flood-burst"
	KeyFloodInterval    = "flood-interval"
	KeyMetricsAddr      = "metrics-addr"
	KeyPushgatewayURL   = "pushgateway-url"
	KeyTwitchClientID   = "twitch-client-id"
	KeyHelixURL         = "helix-url"
)

var (
	ErrMissingServer    = errors.New("server is required")
	ErrMissingChannel   = errors.New("channel is required")
	ErrMissingNickname  = errors.New("nickname is required")
	ErrNoUsers          = errors.New("at least one nickname to ping is required")
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrNegativeDuration = errors.New("standup duration must not be negative")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrMissingClientID  = errors.New("twitch transport needs a client id to send whispers")
)

type Config struct {
	// Connection
	Server    string
	Port      int
	TLS       bool
	Password  string
	Nickname  string
	Transport string

	// NickServ
	NickServPassword string
	MaxNickRetries   int

	// Standup
	Channel  string
	Topic    string
	Duration time.Duration
	Users    []string

	// Twitch whispers go through Helix, not chat.
	TwitchClientID string
	HelixURL       string

	// Outbound flood control
	FloodBurst    int
	FloodInterval time.Duration

	// Observability
	MetricsAddr    string
	PushgatewayURL string
}

// EnvPrefix namespaces environment overrides, e.g. STANDUP_STANDUP_DURATION.
const EnvPrefix = "STANDUP"

// BindEnv makes v consult EnvPrefix_<KEY> variables, with dashes in keys
// mapped to underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers defaults on v so Load works without bound flags.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyTopic, DefaultTopic)
	v.SetDefault(KeyStandupDuration, int(DefaultDuration/time.Second))
	v.SetDefault(KeyTransport, TransportIRC)
	v.SetDefault(KeyMaxNickRetries, DefaultMaxNickRetries)
	v.SetDefault(KeyFloodBurst, DefaultFloodBurst)
	v.SetDefault(KeyFloodInterval, DefaultFloodInterval)
	v.SetDefault(KeyHelixURL, DefaultHelixURL)
}

// Load builds a Config from args (server, channel, nickname, users...) and
// v. The channel is normalized to start with '#'. Load does not validate;
// call Validate on the result.
func Load(v *viper.Viper, args []string) (*Config, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("expected server, channel and nickname, got %d argument(s)", len(args))
	}
	cfg := &Config{
		Server:           args[0],
		Channel:          NormalizeChannel(args[1]),
		Nickname:         args[2],
		Users:            append([]string(nil), args[3:]...),
		Port:             v.GetInt(KeyPort),
		TLS:              v.GetBool(KeySSL),
		Password:         v.GetString(KeyPassword),
		NickServPassword: v.GetString(KeyNickServPassword),
		Topic:            v.GetString(KeyTopic),
		Duration:         time.Duration(v.GetInt(KeyStandupDuration)) * time.Second,
		Transport:        strings.ToLower(v.GetString(KeyTransport)),
		MaxNickRetries:   v.GetInt(KeyMaxNickRetries),
		FloodBurst:       v.GetInt(KeyFloodBurst),
		FloodInterval:    v.GetDuration(KeyFloodInterval),
		MetricsAddr:      v.GetString(KeyMetricsAddr),
		PushgatewayURL:   v.GetString(KeyPushgatewayURL),
		TwitchClientID:   v.GetString(KeyTwitchClientID),
		HelixURL:         v.GetString(KeyHelixURL),
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportIRC
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Server == "":
		return ErrMissingServer
	case c.Channel == "" || c.Channel == "#":
		return ErrMissingChannel
	case c.Nickname == "":
		return ErrMissingNickname
	case len(c.Users) == 0:
		return ErrNoUsers
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	case c.Duration < 0:
		return fmt.Errorf("%w: %s", ErrNegativeDuration, c.Duration)
	}
	switch c.Transport {
	case TransportIRC:
	case TransportTwitch:
		if c.TwitchClientID == "" {
			return ErrMissingClientID
		}
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownTransport, c.Transport, TransportIRC, TransportTwitch)
	}
	return nil
}

// Address returns host:port for dialing.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// NormalizeChannel prefixes '#' unless the name already starts with it.
func NormalizeChannel(ch string) string {
	ch = strings.TrimSpace(ch)
	if ch == "" || strings.HasPrefix(ch, "#") {
		return ch
	}
	return "#" + ch
}
