package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
)

// Pusher sends the content of a registry to a Prometheus Pushgateway, for
// collectors that cannot be scraped.
type Pusher struct {
	pusher *push.Pusher
}

func NewPusher(uri, job, instance string, gatherer prometheus.Gatherer) *Pusher {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	p := push.New(uri, job).
		Gatherer(gatherer).
		Format(expfmt.FmtText)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	return &Pusher{pusher: p}
}

func (p *Pusher) Push() error {
	if err := p.pusher.Push(); err != nil {
		return fmt.Errorf("could not push metrics, %w", err)
	}
	return nil
}

// Run pushes every interval until ctx is done.
func (p *Pusher) Run(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Push(); err != nil {
				logger.Warn(err)
			}
		}
	}
}
