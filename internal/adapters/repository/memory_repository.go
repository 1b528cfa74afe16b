package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

// InMemoryStore is a KeyValueStore and AuditLog kept in process memory.
type InMemoryStore struct {
	store map[string][]byte
	audit []domain.AuditRecord

	mu sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		store: make(map[string][]byte),
	}
}

func (r *InMemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.store[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *InMemoryStore) Put(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store[key] = append([]byte(nil), value...)
	return nil
}

func (r *InMemoryStore) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.store, key)
	return nil
}

func (r *InMemoryStore) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store = make(map[string][]byte)
	r.audit = nil
	return nil
}

func (r *InMemoryStore) Append(ctx context.Context, record domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.audit = append(r.audit, record)
	return nil
}

func (r *InMemoryStore) List(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AuditRecord, len(r.audit))
	copy(out, r.audit)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemorySnapshotRepository is the SnapshotRepository used by tests and by
// a sync server started without a database.
type InMemorySnapshotRepository struct {
	store map[string]*domain.Snapshot

	mu sync.RWMutex
}

func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{
		store: make(map[string]*domain.Snapshot),
	}
}

func snapshotID(ownerID, key string) string {
	return ownerID + "\x00" + key
}

func (r *InMemorySnapshotRepository) Save(ctx context.Context, ownerID, key string, value []byte) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	id := snapshotID(ownerID, key)

	snap, ok := r.store[id]
	if !ok {
		snap = &domain.Snapshot{OwnerID: ownerID, Key: key, CreatedAt: now}
		r.store[id] = snap
	}
	snap.Value = append([]byte(nil), value...)
	snap.Version++
	snap.UpdatedAt = now

	out := *snap
	return &out, nil
}

func (r *InMemorySnapshotRepository) Get(ctx context.Context, ownerID, key string) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.store[snapshotID(ownerID, key)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	out := *snap
	return &out, nil
}

func (r *InMemorySnapshotRepository) Delete(ctx context.Context, ownerID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := snapshotID(ownerID, key)
	if _, ok := r.store[id]; !ok {
		return domain.ErrSnapshotNotFound
	}
	delete(r.store, id)
	return nil
}

// InMemoryNotifier is a ChangeNotifier for a single server process.
type InMemoryNotifier struct {
	subs   map[string]map[int]chan struct{}
	nextID int

	mu sync.Mutex
}

func NewInMemoryNotifier() *InMemoryNotifier {
	return &InMemoryNotifier{
		subs: make(map[string]map[int]chan struct{}),
	}
}

func (n *InMemoryNotifier) Publish(ctx context.Context, ownerID, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[snapshotID(ownerID, key)] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *InMemoryNotifier) Subscribe(ctx context.Context, ownerID, key string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	topic := snapshotID(ownerID, key)
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[int]chan struct{})
	}
	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	n.subs[topic][id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[topic], id)
			if len(n.subs[topic]) == 0 {
				delete(n.subs, topic)
			}
			close(ch)
		})
	}
	return ch, release, nil
}

// InMemoryAccountRepository is an AccountRepository for servers without a
// database.
type InMemoryAccountRepository struct {
	byEmail map[string]*domain.Account

	mu sync.RWMutex
}

func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		byEmail: make(map[string]*domain.Account),
	}
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[account.Email]; exists {
		return domain.ErrEmailAlreadyExists
	}
	stored := *account
	r.byEmail[account.Email] = &stored
	return nil
}

func (r *InMemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *account
	return &out, nil
}
