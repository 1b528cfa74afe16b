package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	DefaultQueueKey   = "kanso:sync_queue"
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

type SyncQueueConfig struct {
	// StoreKey is where the queue state is persisted locally.
	StoreKey string

	// RemoteKey is the key snapshots are saved under remotely.
	RemoteKey string

	MaxRetries int
	RetryDelay time.Duration
}

type queueState struct {
	Entries    []*domain.SyncQueueEntry `json:"entries"`
	DeadLetter []*domain.SyncQueueEntry `json:"deadLetter"`
}

// SyncQueue is the durable outbound queue of snapshots. At most one pending
// snapshot exists at any time: Enqueue replaces it instead of appending.
type SyncQueue struct {
	mu         sync.Mutex
	store      domain.KeyValueStore
	remote     domain.RemoteStore
	cfg        SyncQueueConfig
	logger     zerolog.Logger
	entries    []*domain.SyncQueueEntry
	deadLetter []*domain.SyncQueueEntry
	lastErr    string
	lastStatus domain.SyncStatus
	onStatus   func(domain.SyncStatus)

	// stale holds in-flight entries a newer remote copy superseded.
	stale map[string]bool

	online   atomic.Bool
	draining atomic.Bool
	wg       sync.WaitGroup
}

func NewSyncQueue(store domain.KeyValueStore, remote domain.RemoteStore, cfg SyncQueueConfig, logger zerolog.Logger) *SyncQueue {
	if cfg.StoreKey == "" {
		cfg.StoreKey = DefaultQueueKey
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	q := &SyncQueue{
		store:      store,
		remote:     remote,
		cfg:        cfg,
		logger:     logger,
		lastStatus: domain.SyncIdle,
		stale:      map[string]bool{},
	}
	q.online.Store(true)
	return q
}

// OnStatusChange registers a callback invoked whenever Status changes.
func (q *SyncQueue) OnStatusChange(fn func(domain.SyncStatus)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onStatus = fn
}

// Load restores the persisted queue. Entries interrupted while in flight go
// back to pending; only the newest pending snapshot survives.
func (q *SyncQueue) Load(ctx context.Context) error {
	data, err := q.store.Get(ctx, q.cfg.StoreKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sync queue: %w", err)
	}

	var state queueState
	if err := json.Unmarshal(data, &state); err != nil {
		q.logger.Warn().Err(err).Msg("[SYNC] Discarding unreadable queue state")
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var latest *domain.SyncQueueEntry
	kept := make([]*domain.SyncQueueEntry, 0, len(state.Entries))
	for _, e := range state.Entries {
		if e == nil || e.Payload == nil {
			continue
		}
		if e.Status == domain.EntryInFlight {
			e.Status = domain.EntryPending
		}
		if e.Status == domain.EntryPending {
			latest = e
			continue
		}
		kept = append(kept, e)
	}
	if latest != nil {
		kept = append(kept, latest)
	}

	q.entries = kept
	q.deadLetter = compactEntries(state.DeadLetter)
	q.lastStatus = q.statusLocked()
	metrics.SyncQueueDepth.Set(float64(len(q.entries)))
	return nil
}

// Enqueue stores a snapshot of payload, replacing the pending one if any.
func (q *SyncQueue) Enqueue(ctx context.Context, payload *domain.Aggregate, now time.Time) error {
	q.mu.Lock()
	coalesced := false
	for _, e := range q.entries {
		if e.Type == domain.OperationSnapshot && e.Status == domain.EntryPending {
			e.Payload = payload
			e.CreatedAt = now.UTC()
			coalesced = true
			break
		}
	}
	if !coalesced {
		q.entries = append(q.entries, domain.NewSnapshotEntry(payload, now))
	}
	err := q.persistLocked(ctx)
	q.mu.Unlock()

	q.notify()
	return err
}

// Drain delivers queued snapshots in FIFO order until the queue is empty,
// the queue goes offline or ctx is done. Concurrent calls return at once.
func (q *SyncQueue) Drain(ctx context.Context) {
	for {
		if !q.draining.CompareAndSwap(false, true) {
			return
		}
		q.drain(ctx)
		q.draining.Store(false)

		if !q.online.Load() || ctx.Err() != nil || !q.hasPending() {
			return
		}
	}
}

// Trigger starts a background drain when online. Wait blocks until it ends.
func (q *SyncQueue) Trigger(ctx context.Context) {
	if !q.online.Load() {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.Drain(ctx)
	}()
}

// Wait blocks until every drain started by Trigger has returned.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) drain(ctx context.Context) {
	for {
		if !q.online.Load() {
			q.logger.Info().Msg("[SYNC] Offline, drain aborted")
			return
		}
		if ctx.Err() != nil {
			return
		}

		entry, err := q.takeHead(ctx)
		if err != nil {
			q.logger.Error().Err(err).Msg("[SYNC] Failed to persist queue state")
		}
		if entry == nil {
			return
		}
		q.notify()

		deliverErr := q.deliver(ctx, entry)
		q.settle(ctx, entry, deliverErr)
		q.notify()

		if deliverErr != nil {
			if err := sleepContext(ctx, q.cfg.RetryDelay); err != nil {
				return
			}
		}
	}
}

func (q *SyncQueue) takeHead(ctx context.Context) (*domain.SyncQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, nil
	}
	head := q.entries[0]
	head.Status = domain.EntryInFlight
	return head, q.persistLocked(ctx)
}

func (q *SyncQueue) deliver(ctx context.Context, entry *domain.SyncQueueEntry) error {
	data, err := entry.Payload.Encode()
	if err != nil {
		return err
	}
	return q.remote.Save(ctx, q.cfg.RemoteKey, data)
}

func (q *SyncQueue) settle(ctx context.Context, entry *domain.SyncQueueEntry, deliverErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stale := q.stale[entry.ID]
	delete(q.stale, entry.ID)
	if !q.removeLocked(entry.ID) {
		return
	}

	if deliverErr != nil && stale {
		metrics.SyncDeliveries.WithLabelValues("superseded").Inc()
		q.logger.Info().Err(deliverErr).Str("entry_id", entry.ID).
			Msg("[SYNC] Delivery failed, remote copy is newer, dropping this one")
		if err := q.persistLocked(ctx); err != nil {
			q.logger.Error().Err(err).Msg("[SYNC] Failed to persist queue state")
		}
		return
	}

	if deliverErr == nil {
		q.lastErr = ""
		metrics.SyncDeliveries.WithLabelValues("success").Inc()
		q.logger.Debug().Str("entry_id", entry.ID).Msg("[SYNC] Snapshot delivered")
		if err := q.persistLocked(ctx); err != nil {
			q.logger.Error().Err(err).Msg("[SYNC] Failed to persist queue state")
		}
		return
	}

	entry.Retries++
	entry.LastError = deliverErr.Error()
	q.lastErr = entry.LastError

	switch {
	case entry.Retries >= q.cfg.MaxRetries:
		entry.Status = domain.EntryFailed
		q.deadLetter = append(q.deadLetter, entry)
		metrics.SyncDeliveries.WithLabelValues("dead_letter").Inc()
		q.logger.Error().Err(deliverErr).Str("entry_id", entry.ID).Int("retries", entry.Retries).
			Msg("[SYNC] Snapshot moved to dead letter")
	case q.hasPendingLocked():
		metrics.SyncDeliveries.WithLabelValues("superseded").Inc()
		q.logger.Warn().Err(deliverErr).Str("entry_id", entry.ID).
			Msg("[SYNC] Delivery failed, newer snapshot pending, dropping this one")
	default:
		entry.Status = domain.EntryPending
		q.entries = append(q.entries, entry)
		metrics.SyncDeliveries.WithLabelValues("failure").Inc()
		q.logger.Warn().Err(deliverErr).Str("entry_id", entry.ID).Int("retries", entry.Retries).
			Msg("[SYNC] Delivery failed, will retry")
	}

	if err := q.persistLocked(ctx); err != nil {
		q.logger.Error().Err(err).Msg("[SYNC] Failed to persist queue state")
	}
}

// Supersede drops pending snapshots not newer than ts. It is used after a
// remote copy stamped ts replaced the local aggregate.
//
// An in-flight snapshot cannot be recalled. It is marked stale instead: if
// its delivery fails it is dropped rather than retried; if it succeeds the
// remote ends up with the older copy, the last writer at delivery time, and
// the next local change uploads the current state again.
func (q *SyncQueue) Supersede(ctx context.Context, ts time.Time) error {
	q.mu.Lock()
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Payload.LastUpdated.After(ts) {
			kept = append(kept, e)
			continue
		}
		switch e.Status {
		case domain.EntryPending:
			continue
		case domain.EntryInFlight:
			q.stale[e.ID] = true
		}
		kept = append(kept, e)
	}
	q.entries = kept
	err := q.persistLocked(ctx)
	q.mu.Unlock()

	q.notify()
	return err
}

// SetOnline toggles delivery. Going online triggers a drain.
func (q *SyncQueue) SetOnline(ctx context.Context, online bool) {
	q.online.Store(online)
	if online {
		q.Trigger(ctx)
	}
}

func (q *SyncQueue) Online() bool {
	return q.online.Load()
}

func (q *SyncQueue) Status() domain.SyncStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// statusLocked reports failed after a failed delivery, and also while dead
// letters are left over and nothing else is queued, which is how a restarted
// queue remembers earlier failures.
func (q *SyncQueue) statusLocked() domain.SyncStatus {
	for _, e := range q.entries {
		if e.Status == domain.EntryInFlight {
			return domain.SyncSyncing
		}
	}
	if q.lastErr != "" || (len(q.deadLetter) > 0 && len(q.entries) == 0) {
		return domain.SyncFailed
	}
	if len(q.entries) > 0 {
		return domain.SyncPending
	}
	return domain.SyncIdle
}

// Entries returns a copy of the queued entries.
func (q *SyncQueue) Entries() []domain.SyncQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copyEntries(q.entries)
}

// DeadLetters returns the snapshots abandoned after MaxRetries failures.
func (q *SyncQueue) DeadLetters() []domain.SyncQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return copyEntries(q.deadLetter)
}

// ClearDeadLetters forgets the abandoned snapshots and the last delivery
// error.
func (q *SyncQueue) ClearDeadLetters(ctx context.Context) error {
	q.mu.Lock()
	q.deadLetter = nil
	q.lastErr = ""
	err := q.persistLocked(ctx)
	q.mu.Unlock()

	q.notify()
	return err
}

// Reset empties the queue and the dead letter list and removes their
// persisted state.
func (q *SyncQueue) Reset(ctx context.Context) error {
	q.mu.Lock()
	q.entries = nil
	q.deadLetter = nil
	q.lastErr = ""
	q.stale = map[string]bool{}
	metrics.SyncQueueDepth.Set(0)
	err := q.store.Delete(ctx, q.cfg.StoreKey)
	q.mu.Unlock()

	q.notify()
	if err != nil {
		return fmt.Errorf("reset sync queue: %w", err)
	}
	return nil
}

func (q *SyncQueue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasPendingLocked()
}

func (q *SyncQueue) hasPendingLocked() bool {
	for _, e := range q.entries {
		if e.Status == domain.EntryPending {
			return true
		}
	}
	return false
}

func (q *SyncQueue) removeLocked(id string) bool {
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *SyncQueue) persistLocked(ctx context.Context) error {
	metrics.SyncQueueDepth.Set(float64(len(q.entries)))

	data, err := json.Marshal(queueState{
		Entries:    q.entries,
		DeadLetter: q.deadLetter,
	})
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	if err := q.store.Put(ctx, q.cfg.StoreKey, data); err != nil {
		return fmt.Errorf("persist sync queue: %w", err)
	}
	return nil
}

func (q *SyncQueue) notify() {
	q.mu.Lock()
	status := q.statusLocked()
	changed := status != q.lastStatus
	q.lastStatus = status
	fn := q.onStatus
	q.mu.Unlock()

	if changed && fn != nil {
		fn(status)
	}
}

func copyEntries(in []*domain.SyncQueueEntry) []domain.SyncQueueEntry {
	out := make([]domain.SyncQueueEntry, 0, len(in))
	for _, e := range in {
		out = append(out, *e)
	}
	return out
}

func compactEntries(in []*domain.SyncQueueEntry) []*domain.SyncQueueEntry {
	var out []*domain.SyncQueueEntry
	for _, e := range in {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
