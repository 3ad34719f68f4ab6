package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for standup runs.
const PushJob = "standup_bot"

// Push sends the default registry to a Pushgateway, grouped by channel.
// An empty url disables pushing.
func Push(ctx context.Context, url, channel string) error {
	if url == "" {
		return nil
	}
	return PushGatherer(ctx, url, channel, prometheus.DefaultGatherer)
}

// PushGatherer pushes the metrics collected by g.
func PushGatherer(ctx context.Context, url, channel string, g prometheus.Gatherer) error {
	p := push.New(url, PushJob).Gatherer(g)
	if ch := strings.TrimPrefix(channel, "#"); ch != "" {
		p = p.Grouping("channel", ch)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
