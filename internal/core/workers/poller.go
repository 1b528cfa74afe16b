package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/clock"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval       = 30 * time.Second
	DefaultHiddenPollInterval = 5 * time.Minute
	DefaultMaxPollInterval    = 10 * time.Minute
	DefaultFailureThreshold   = 3
)

// RemoteApplier is the local side a Poller keeps up to date.
type RemoteApplier interface {
	LastUpdated() time.Time

	// ApplyRemote replaces the local aggregate with agg.
	ApplyRemote(ctx context.Context, agg *domain.Aggregate) error
}

type PollerConfig struct {
	RemoteKey        string
	Interval         time.Duration
	HiddenInterval   time.Duration
	MaxInterval      time.Duration
	FailureThreshold int
}

type PollerState string

const (
	PollerStopped   PollerState = "stopped"
	PollerScheduled PollerState = "scheduled"
	PollerInFlight  PollerState = "in_flight"
)

// Poller periodically pulls the remote snapshot and applies it when it is
// strictly newer than the local aggregate.
type Poller struct {
	mu       sync.Mutex
	clock    clock.Clock
	remote   domain.RemoteStore
	target   RemoteApplier
	cfg      PollerConfig
	logger   zerolog.Logger
	ctx      context.Context
	state    PollerState
	timer    clock.Timer
	gen      uint64
	failures int
	hidden   bool
}

func NewPoller(clk clock.Clock, remote domain.RemoteStore, target RemoteApplier, cfg PollerConfig, logger zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.HiddenInterval <= 0 {
		cfg.HiddenInterval = DefaultHiddenPollInterval
	}
	if cfg.MaxInterval < cfg.Interval {
		cfg.MaxInterval = DefaultMaxPollInterval
		if cfg.MaxInterval < cfg.Interval {
			cfg.MaxInterval = cfg.Interval
		}
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}

	return &Poller{
		clock:  clk,
		remote: remote,
		target: target,
		cfg:    cfg,
		logger: logger,
		ctx:    context.Background(),
		state:  PollerStopped,
	}
}

// Start cancels any scheduled pull, pulls right away and keeps polling
// until Stop or until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctx = ctx
	p.armLocked(0)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.state = PollerStopped
}

// SetVisible switches between the foreground and the background interval.
// Becoming visible pulls immediately.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hidden == !visible {
		return
	}
	p.hidden = !visible

	if p.state != PollerScheduled {
		return
	}
	if visible {
		p.armLocked(0)
		return
	}
	p.armLocked(p.intervalLocked())
}

func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Interval returns the delay used for the next scheduled pull.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intervalLocked()
}

func (p *Poller) intervalLocked() time.Duration {
	if p.hidden {
		return p.cfg.HiddenInterval
	}

	d := p.cfg.Interval
	if p.failures < p.cfg.FailureThreshold {
		return d
	}
	for i := p.cfg.FailureThreshold - 1; i < p.failures; i++ {
		d *= 2
		if d >= p.cfg.MaxInterval {
			return p.cfg.MaxInterval
		}
	}
	return d
}

func (p *Poller) armLocked(delay time.Duration) {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
	}
	gen := p.gen
	p.state = PollerScheduled
	p.timer = p.clock.AfterFunc(delay, func() { p.tick(gen) })
}

func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.state != PollerScheduled {
		p.mu.Unlock()
		return
	}
	if p.ctx.Err() != nil {
		p.state = PollerStopped
		p.timer = nil
		p.mu.Unlock()
		return
	}
	p.state = PollerInFlight
	p.timer = nil
	ctx := p.ctx
	p.mu.Unlock()

	if _, err := p.Pull(ctx, false); err != nil {
		p.logger.Warn().Err(err).Int("failures", p.Failures()).Msg("[POLLER] Pull failed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state != PollerInFlight {
		return
	}
	if ctx.Err() != nil {
		p.state = PollerStopped
		return
	}
	p.armLocked(p.intervalLocked())
}

// Pull fetches the remote snapshot and applies it when it is strictly newer
// than the local aggregate, or unconditionally when force is set. It reports
// whether the local aggregate was replaced.
func (p *Poller) Pull(ctx context.Context, force bool) (bool, error) {
	data, err := p.remote.Load(ctx, p.cfg.RemoteKey)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		p.recordSuccess()
		metrics.PollerPulls.WithLabelValues("missing").Inc()
		return false, nil
	}
	if err != nil {
		p.recordFailure()
		metrics.PollerPulls.WithLabelValues("failure").Inc()
		return false, fmt.Errorf("load remote snapshot: %w", err)
	}

	remote, err := domain.DecodeAggregate(data)
	if err != nil {
		p.recordFailure()
		metrics.PollerPulls.WithLabelValues("failure").Inc()
		return false, fmt.Errorf("decode remote snapshot: %w", err)
	}
	p.recordSuccess()

	if !force && !remote.LastUpdated.After(p.target.LastUpdated()) {
		metrics.PollerPulls.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	if err := p.target.ApplyRemote(ctx, remote); err != nil {
		return false, fmt.Errorf("apply remote snapshot: %w", err)
	}
	metrics.PollerPulls.WithLabelValues("applied").Inc()
	p.logger.Info().Bool("force", force).Time("last_updated", remote.LastUpdated).
		Msg("[POLLER] Applied remote snapshot")

	return true, nil
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = 0
	metrics.PollerConsecutiveFailures.Set(0)
}

func (p *Poller) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	metrics.PollerConsecutiveFailures.Set(float64(p.failures))
}
