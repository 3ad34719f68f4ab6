// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSent       *prometheus.CounterVec // kind=ping|prompt|private|thanks
	NameRepliesIgnored prometheus.Counter
	NickRetries        prometheus.Counter

	// Gauges
	PresentUsers prometheus.Gauge
	AbsentUsers  prometheus.Gauge
	Participants prometheus.Gauge

	// Histograms (seconds)
	SessionDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "standup_messages_sent_total", Help: "Messages sent by the bot, by kind"}, []string{"kind"})
		NameRepliesIgnored = promauto.NewCounter(prometheus.CounterOpts{Name: "standup_name_replies_ignored_total", Help: "Name replies discarded because the standup had already started"})
		NickRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "standup_nick_retries_total", Help: "Nickname changes after nickname-in-use replies"})
		PresentUsers = promauto.NewGauge(prometheus.GaugeOpts{Name: "standup_present_users", Help: "Configured users found in the channel at standup start"})
		AbsentUsers = promauto.NewGauge(prometheus.GaugeOpts{Name: "standup_absent_users", Help: "Configured users messaged privately because they were not in the channel"})
		Participants = promauto.NewGauge(prometheus.GaugeOpts{Name: "standup_participants", Help: "Configured users who posted in the channel during the standup"})
		SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "standup_session_duration_seconds", Help: "Wall time from connect to disconnect", Buckets: []float64{1, 10, 60, 300, 600, 900, 1800, 3600}})
	})
}

// CountSent increments the sent-message counter for kind.
func CountSent(kind string) {
	if MessagesSent != nil {
		MessagesSent.WithLabelValues(kind).Inc()
	}
}

// IncNameRepliesIgnored counts a discarded duplicate name reply.
func IncNameRepliesIgnored() {
	if NameRepliesIgnored != nil {
		NameRepliesIgnored.Inc()
	}
}

// IncNickRetries counts one nickname retry.
func IncNickRetries() {
	if NickRetries != nil {
		NickRetries.Inc()
	}
}

// SetAttendance records how many configured users were present and absent.
func SetAttendance(present, absent int) {
	if PresentUsers != nil {
		PresentUsers.Set(float64(present))
	}
	if AbsentUsers != nil {
		AbsentUsers.Set(float64(absent))
	}
}

// SetParticipants records the participant count.
func SetParticipants(n int) {
	if Participants != nil {
		Participants.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
