package fetch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller 定时执行一次拉取；Trigger 可在计时器之外立即触发一次
type Poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	trigger  chan struct{}
}

func NewPoller(name string, interval time.Duration, tick func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		name:     name,
		interval: interval,
		tick:     tick,
		trigger:  make(chan struct{}, 1),
	}
}

// Run blocks until ctx is done. The first tick runs immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Str("poller", p.name).Dur("interval", p.interval).Msg("poller started")

	// 首次立即拉取
	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("poller", p.name).Msg("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		case <-p.trigger:
			p.tick(ctx)
		}
	}
}

// Trigger requests an extra tick; pending requests coalesce.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}
