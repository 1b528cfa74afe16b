package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/clock"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/workers"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type OrganizerConfig struct {
	// StoreKey is the local key of the aggregate. Default: AggregateKey.
	StoreKey string

	// RemoteKey is the remote key snapshots are saved under. Default: AggregateKey.
	RemoteKey string

	Queue  workers.SyncQueueConfig
	Poller workers.PollerConfig
}

// Organizer is the storage facade: every read and mutation of the aggregate
// goes through it. A mutation is applied in memory, written to the local
// store, and then shipped to the remote store in the background.
//
// Remote copies replace the local aggregate as a whole when their
// LastUpdated is strictly newer (last writer wins).
type Organizer struct {
	mu        sync.Mutex
	agg       *domain.Aggregate
	store     *LocalStore
	queue     *workers.SyncQueue
	poller    *workers.Poller
	scheduler *workers.DayScheduler
	clock     clock.Clock
	events    *broadcaster
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOrganizer wires the engine. remote may be nil for a local-only setup, in
// which case nothing is queued or polled.
func NewOrganizer(kv domain.KeyValueStore, remote domain.RemoteStore, clk clock.Clock, cfg OrganizerConfig, logger zerolog.Logger) *Organizer {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.RemoteKey == "" {
		cfg.RemoteKey = AggregateKey
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Organizer{
		agg:    domain.NewAggregate(),
		store:  NewLocalStore(kv, cfg.StoreKey, logger),
		clock:  clk,
		events: newBroadcaster(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if remote != nil {
		cfg.Queue.RemoteKey = cfg.RemoteKey
		cfg.Poller.RemoteKey = cfg.RemoteKey
		o.queue = workers.NewSyncQueue(kv, remote, cfg.Queue, logger)
		o.queue.OnStatusChange(o.publishStatus)
		o.poller = workers.NewPoller(clk, remote, o, cfg.Poller, logger)
	}
	o.scheduler = workers.NewDayScheduler(clk, func(now time.Time) {
		o.RunDayBoundary(o.ctx, now)
	}, logger)

	return o
}

// Open loads the aggregate and the sync queue from the local store and
// refreshes the derived state for today.
func (o *Organizer) Open(ctx context.Context) error {
	agg := o.store.Read(ctx)

	if o.queue != nil {
		if err := o.queue.Load(ctx); err != nil {
			return err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	o.agg = agg
	RecomputeAllStreaks(o.agg, now)
	EnsureMonthlyChart(o.agg, now)

	if err := o.store.Write(ctx, o.agg); err != nil {
		o.logger.Error().Err(err).Msg("[STORE] Failed to write aggregate")
	}
	return nil
}

// Start arms the day-boundary scheduler and, with a remote store, starts
// polling and delivers anything left in the queue.
func (o *Organizer) Start() {
	o.scheduler.Start()
	if o.poller != nil {
		o.poller.Start(o.ctx)
	}
	if o.queue != nil {
		o.queue.Trigger(o.ctx)
	}
}

// Stop cancels every timer. The organizer stays usable.
func (o *Organizer) Stop() {
	o.scheduler.Stop()
	if o.poller != nil {
		o.poller.Stop()
	}
}

// Close stops the engine, waits for a running delivery to give up and closes
// all subscriptions. The local store may be closed once it returns.
func (o *Organizer) Close() error {
	o.Stop()
	o.cancel()
	if o.queue != nil {
		o.queue.Wait()
	}
	o.events.close()
	return nil
}

// Reset cancels every timer and wipes the persisted aggregate and queue.
func (o *Organizer) Reset(ctx context.Context) error {
	o.Stop()

	if o.queue != nil {
		if err := o.queue.Reset(ctx); err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.agg = domain.NewAggregate()
	err := o.store.Clear(ctx)
	o.mu.Unlock()
	if err != nil {
		return err
	}

	o.events.publish(Event{Type: EventDataChanged, Source: SourceReset, At: o.clock.Now()})
	return nil
}

// Subscribe returns a channel of engine events and a function ending the
// subscription.
func (o *Organizer) Subscribe() (<-chan Event, func()) {
	return o.events.subscribe()
}

// mutation changes agg and returns the dates whose rollup must be refreshed.
type mutation func(agg *domain.Aggregate, now time.Time) ([]time.Time, error)

func (o *Organizer) mutate(ctx context.Context, source string, fn mutation) error {
	o.mu.Lock()

	now := o.clock.Now()
	dates, err := fn(o.agg, now)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	o.agg.LastUpdated = now.UTC()
	RecomputeAllStreaks(o.agg, now)
	for _, d := range dates {
		RollupDay(o.agg, d)
	}

	o.commitLocked(ctx, now)
	o.mu.Unlock()

	o.afterCommit(source, now)
	return nil
}

// commitLocked writes the aggregate locally and queues a snapshot of it.
// Failures are logged: the in-memory change stands regardless.
func (o *Organizer) commitLocked(ctx context.Context, now time.Time) {
	if err := o.store.Write(ctx, o.agg); err != nil {
		o.logger.Error().Err(err).Msg("[STORE] Failed to write aggregate")
	}

	if o.queue == nil {
		return
	}
	snapshot, err := o.agg.Clone()
	if err != nil {
		o.logger.Error().Err(err).Msg("[SYNC] Failed to snapshot aggregate")
		return
	}
	if err := o.queue.Enqueue(ctx, snapshot, now); err != nil {
		o.logger.Error().Err(err).Msg("[SYNC] Failed to enqueue snapshot")
	}
}

func (o *Organizer) afterCommit(source string, now time.Time) {
	if o.queue != nil {
		o.queue.Trigger(o.ctx)
	}
	o.events.publish(Event{Type: EventDataChanged, Source: source, At: now})
}

func (o *Organizer) publishStatus(status domain.SyncStatus) {
	o.events.publish(Event{Type: EventSyncStatus, Status: status, At: o.clock.Now()})
}

// LastUpdated returns the timestamp of the current aggregate.
func (o *Organizer) LastUpdated() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg.LastUpdated
}

// ApplyRemote replaces the aggregate with a remote copy and persists it. The
// copy keeps its own LastUpdated.
//
// Unlike a local mutation it is not re-enqueued, since the remote store
// already holds this document. Pending local snapshots it supersedes are
// dropped instead.
func (o *Organizer) ApplyRemote(ctx context.Context, agg *domain.Aggregate) error {
	if agg == nil {
		return domain.ErrInvalidAggregate
	}

	o.mu.Lock()
	now := o.clock.Now()
	o.agg = agg
	RecomputeAllStreaks(o.agg, now)
	if err := o.store.Write(ctx, o.agg); err != nil {
		o.logger.Error().Err(err).Msg("[STORE] Failed to write remote aggregate")
	}
	remoteAt := agg.LastUpdated
	o.mu.Unlock()

	if o.queue != nil {
		if err := o.queue.Supersede(ctx, remoteAt); err != nil {
			o.logger.Error().Err(err).Msg("[SYNC] Failed to drop superseded snapshots")
		}
	}
	o.events.publish(Event{Type: EventDataChanged, Source: SourceRemote, At: now})
	return nil
}

// RunDayBoundary performs the midnight work: make sure the current month has
// a chart, roll up yesterday and refresh every streak.
func (o *Organizer) RunDayBoundary(ctx context.Context, now time.Time) {
	o.mu.Lock()
	EnsureMonthlyChart(o.agg, now)
	yesterday := domain.StartOfDay(now).AddDate(0, 0, -1)
	stats := RollupDay(o.agg, yesterday)
	RecomputeAllStreaks(o.agg, now)
	o.agg.LastUpdated = now.UTC()
	o.commitLocked(ctx, now)
	o.mu.Unlock()

	o.logger.Info().Str("date", stats.Date).Int("percentage", stats.Percentage).
		Msg("[SCHEDULER] Day rolled up")
	o.afterCommit(SourceDayBoundary, now)
}

// Snapshot returns a deep copy of the current aggregate.
func (o *Organizer) Snapshot() (*domain.Aggregate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg.Clone()
}

// Export serializes the whole aggregate.
func (o *Organizer) Export() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := json.MarshalIndent(o.agg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export aggregate: %w", err)
	}
	return data, nil
}

// Import replaces the aggregate with an exported document. Missing fields
// take their default value. A malformed document is rejected with
// ErrInvalidImport and leaves the current state untouched.
func (o *Organizer) Import(ctx context.Context, data []byte) error {
	imported, err := domain.DecodeAggregate(data)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidImport, err)
	}

	return o.mutate(ctx, SourceImport, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		*agg = *imported
		return nil, nil
	})
}

// SetOnline reports connectivity changes. Going online drains the queue and
// restarts polling; going offline stops both.
func (o *Organizer) SetOnline(online bool) {
	if o.queue == nil {
		return
	}
	o.queue.SetOnline(o.ctx, online)
	if online {
		o.poller.Start(o.ctx)
		return
	}
	o.poller.Stop()
}

// SetVisible switches polling between the foreground and background pace.
func (o *Organizer) SetVisible(visible bool) {
	if o.poller != nil {
		o.poller.SetVisible(visible)
	}
}

// ForcePull replaces the aggregate with the remote copy regardless of
// timestamps. It is what a realtime push triggers.
func (o *Organizer) ForcePull(ctx context.Context) (bool, error) {
	if o.poller == nil {
		return false, nil
	}
	return o.poller.Pull(ctx, true)
}

// Pull applies the remote copy if it is strictly newer.
func (o *Organizer) Pull(ctx context.Context) (bool, error) {
	if o.poller == nil {
		return false, nil
	}
	return o.poller.Pull(ctx, false)
}

// ForceSync drains the queue and returns when it is empty, offline or ctx
// is done.
func (o *Organizer) ForceSync(ctx context.Context) {
	if o.queue != nil {
		o.queue.Drain(ctx)
	}
}

func (o *Organizer) SyncStatus() domain.SyncStatus {
	if o.queue == nil {
		return domain.SyncIdle
	}
	return o.queue.Status()
}

func (o *Organizer) PendingEntries() []domain.SyncQueueEntry {
	if o.queue == nil {
		return nil
	}
	return o.queue.Entries()
}

func (o *Organizer) DeadLetters() []domain.SyncQueueEntry {
	if o.queue == nil {
		return nil
	}
	return o.queue.DeadLetters()
}

func (o *Organizer) ClearDeadLetters(ctx context.Context) error {
	if o.queue == nil {
		return nil
	}
	return o.queue.ClearDeadLetters(ctx)
}

// Summarize reports activity between from and to, both inclusive.
func (o *Organizer) Summarize(from, to time.Time) (*domain.RangeSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Summarize(o.agg, from, to)
}

// MonthlyChart returns a copy of the chart of a YYYY-MM month.
func (o *Organizer) MonthlyChart(month string) (domain.MonthlyChart, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	chart, ok := o.agg.MonthlyCharts[month]
	if !ok {
		return domain.MonthlyChart{}, false
	}
	out := *chart
	out.Days = append([]domain.DailyStats(nil), chart.Days...)
	return out, true
}

func (o *Organizer) Settings() domain.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agg.Settings
}

func (o *Organizer) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	return o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, _ time.Time) ([]time.Time, error) {
		agg.Settings = settings
		return nil, nil
	})
}
