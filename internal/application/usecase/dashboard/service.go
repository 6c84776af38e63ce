package dashboard

import (
	"context"
	"errors"
	"time"

	"pulseboard/internal/application/fetch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ServiceDeps: Prices/Weather/News/Stream 可以为 nil（未配置或缺少 key）
type ServiceDeps struct {
	Prices  *fetch.Prices
	Weather *fetch.Weather
	News    *fetch.News
	Stream  port.StreamControl
	Ledger  *domain.Ledger
	Sink    port.Sink

	RenderEvery   time.Duration
	SnapshotEvery time.Duration
}

type Service struct {
	deps ServiceDeps
	fmt  *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.RenderEvery <= 0 {
		deps.RenderEvery = 5 * time.Second
	}
	if deps.SnapshotEvery <= 0 {
		deps.SnapshotEvery = 5 * time.Minute
	}
	return &Service{deps: deps, fmt: NewFormatter()}
}

type runner interface {
	Run(ctx context.Context) error
}

// Run starts every configured poller and the push connection, and renders
// the live line until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	var runners []runner
	if s.deps.Prices != nil {
		runners = append(runners, s.deps.Prices)
	}
	if s.deps.Weather != nil {
		runners = append(runners, s.deps.Weather)
	}
	if s.deps.News != nil {
		runners = append(runners, s.deps.News)
	}
	if len(runners) == 0 && s.deps.Stream == nil {
		return errors.New("no sources enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error { return ignoreCanceled(r.Run(gctx)) })
	}

	if st := s.deps.Stream; st != nil {
		g.Go(func() error {
			// 首次失败由客户端自身的重连策略处理
			if err := st.Connect(gctx); err != nil {
				log.Warn().Err(err).Msg("initial stream connect failed")
			}
			<-gctx.Done()
			st.Disconnect()
			return nil
		})
	}

	g.Go(func() error { return s.render(gctx) })

	return g.Wait()
}

func (s *Service) render(ctx context.Context) error {
	if s.deps.Sink == nil {
		<-ctx.Done()
		return nil
	}

	live := time.NewTicker(s.deps.RenderEvery)
	defer live.Stop()
	snap := time.NewTicker(s.deps.SnapshotEvery)
	defer snap.Stop()

	last := s.fmt.Render(s.View(), RenderLive)
	_ = s.deps.Sink.WriteLive(last)

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return nil

		case now := <-snap.C:
			_ = s.deps.Sink.WriteSnapshot(now, s.fmt.Render(s.View(), RenderSnapshot))

		case <-live.C:
			line := s.fmt.Render(s.View(), RenderLive)
			if line != last {
				last = line
				_ = s.deps.Sink.WriteLive(line)
			}
		}
	}
}

// View collects the current state of all tables.
func (s *Service) View() View {
	v := View{Favorites: map[string]bool{}}
	if p := s.deps.Prices; p != nil {
		v.Coins = p.Coins()
		for _, id := range p.Table().Favorites() {
			v.Favorites[id] = true
		}
	}
	if w := s.deps.Weather; w != nil {
		v.Cities = w.Cities()
	}
	if n := s.deps.News; n != nil {
		arts, _ := n.Articles()
		v.Articles = len(arts)
	}
	if s.deps.Ledger != nil {
		v.Unread = s.deps.Ledger.UnreadCount()
	}
	if s.deps.Stream != nil {
		v.Stream = s.deps.Stream.Status()
	}
	return v
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
