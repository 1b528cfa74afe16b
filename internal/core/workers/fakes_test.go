package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = map[string][]byte{}
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	saved    map[string][]byte
	saveErr  error
	loadErr  error
	saves    int
	loads    int
	onSave   func()
	failures int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{saved: map[string][]byte{}}
}

func (f *fakeRemote) Save(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.saves++
	hook := f.onSave
	err := f.saveErr
	if err == nil && f.failures > 0 {
		f.failures--
		err = errors.New("remote unavailable")
	}
	if err == nil {
		f.saved[key] = value
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeRemote) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	v, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return v, nil
}

func (f *fakeRemote) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeRemote) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeRemote) put(key string, agg *domain.Aggregate) {
	data, err := agg.Encode()
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[key] = data
}

func aggregateAt(ts time.Time, habitNames ...string) *domain.Aggregate {
	agg := domain.NewAggregate()
	agg.LastUpdated = ts
	for _, name := range habitNames {
		h, err := domain.NewHabit(name, "", "", 1, nil, ts)
		if err != nil {
			panic(err)
		}
		agg.Habits = append(agg.Habits, h)
	}
	return agg
}
