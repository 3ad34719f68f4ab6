// Package cli wires the command line to a standup run.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/onnwee/standup-bot/chat"
	"github.com/onnwee/standup-bot/config"
	"github.com/onnwee/standup-bot/irc"
	"github.com/onnwee/standup-bot/server"
	"github.com/onnwee/standup-bot/standup"
	"github.com/onnwee/standup-bot/telemetry"
)

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the standup-bot command with a fresh viper store.
func NewRootCommand() *cobra.Command {
	return newRootCommand(viper.New())
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:   "standup-bot server channel nickname nickname-to-ping...",
		Short: "Run a timed standup in an IRC channel",
		Long: `standup-bot connects to an IRC server, joins a channel, pings the listed
users who are present, privately messages the ones who are not, waits for the
standup duration while noting who spoke up, thanks them and disconnects.

Every flag can also be set through STANDUP_<FLAG> environment variables
(dashes become underscores) or a YAML file passed with --config.`,
		Args:          cobra.MinimumNArgs(4),
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.Load(v, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return Run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "YAML config file with flag defaults")
	f.Int(config.KeyPort, config.DefaultPort, "The IRC server's port")
	f.String(config.KeyPassword, "", "Server password (Twitch: OAuth token)")
	f.Bool(config.KeySSL, false, "Connect with TLS")
	f.String(config.KeyNickServPassword, "", "Identify with NickServ before joining")
	f.Int(config.KeyStandupDuration, int(config.DefaultDuration/time.Second), "Standup duration in seconds (the default is 15 minutes)")
	f.String(config.KeyTopic, config.DefaultTopic, "Text of the standup ping")
	f.String(config.KeyTransport, config.TransportIRC, "Chat backend: irc or twitch")
	f.Int(config.KeyMaxNickRetries, config.DefaultMaxNickRetries, "Give up after this many nickname-in-use replies (0 = never)")
	f.Int(config.KeyFloodBurst, config.DefaultFloodBurst, "Outbound lines allowed in a burst")
	f.Duration(config.KeyFloodInterval, config.DefaultFloodInterval, "Minimum spacing between outbound lines after the burst (0 disables)")
	f.String(config.KeyTwitchClientID, "", "Twitch application client id, used to send whispers through Helix")
	f.String(config.KeyHelixURL, config.DefaultHelixURL, "Twitch Helix API base URL")
	f.String(config.KeyMetricsAddr, "", "Serve /healthz, /status and /metrics on this address during the standup")
	f.String(config.KeyPushgatewayURL, "", "Push metrics to this Prometheus Pushgateway when the standup ends")
	return cmd
}

// initConfig layers flags over STANDUP_* env over the optional config file.
func initConfig(cmd *cobra.Command, v *viper.Viper) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	config.BindEnv(v)
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		slog.Debug("config file loaded", slog.String("path", file))
	}
	return nil
}

// NewTransport returns the transport selected by cfg.Transport.
func NewTransport(cfg *config.Config) (standup.Transport, error) {
	switch cfg.Transport {
	case config.TransportIRC:
		return irc.New(cfg), nil
	case config.TransportTwitch:
		return chat.NewTwitchTransport(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
	}
}

// Run executes one standup with cfg. Metrics are pushed (when configured)
// whether or not the session succeeded.
func Run(ctx context.Context, cfg *config.Config) error {
	tr, err := NewTransport(cfg)
	if err != nil {
		return err
	}
	return runSession(ctx, cfg, tr)
}

func runSession(ctx context.Context, cfg *config.Config, tr standup.Transport, opts ...standup.Option) (err error) {
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	logger := telemetry.LoggerWithCorr(ctx)
	telemetry.Init()

	ctx, span := telemetry.StartSpan(ctx, "standup", "standup.session", telemetry.SessionAttrs(cfg.Channel, cfg.Transport, len(cfg.Users))...)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanSuccess(span)
		}
		span.End()
	}()

	status := standup.NewStatus()
	if cfg.MetricsAddr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		go func() {
			if err := server.Start(srvCtx, cfg.MetricsAddr, status); err != nil {
				logger.Error("status listener exited", slog.Any("err", err))
			}
		}()
	}

	session := standup.New(cfg, tr, append([]standup.Option{standup.WithObserver(status.Publish)}, opts...)...)
	elapsed := telemetry.TimeFunc(telemetry.SessionDuration, func() {
		err = session.Run(ctx)
	})
	logger.Info("standup finished",
		slog.Duration("elapsed", elapsed),
		slog.Any("participants", session.Participants()),
		slog.String("state", session.State().String()))

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if pushErr := telemetry.Push(pushCtx, cfg.PushgatewayURL, cfg.Channel); pushErr != nil {
		logger.Warn("metrics push failed", slog.Any("err", pushErr))
	}
	return err
}
