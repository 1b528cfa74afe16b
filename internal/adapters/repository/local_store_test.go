package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type localStore interface {
	domain.KeyValueStore
	domain.AuditLog
}

func localBackends(t *testing.T) map[string]func(t *testing.T) localStore {
	return map[string]func(t *testing.T) localStore{
		"memory": func(t *testing.T) localStore {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) localStore {
			s, err := OpenSQLiteMemory()
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"badger": func(t *testing.T) localStore {
			s, err := OpenBadgerLocalStore("")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestLocalStores_KeyValue(t *testing.T) {
	ctx := context.Background()

	for name, open := range localBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)

			_, err := store.Get(ctx, "organizer_data")
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)

			require.NoError(t, store.Put(ctx, "organizer_data", []byte(`{"habits":[]}`)))
			got, err := store.Get(ctx, "organizer_data")
			require.NoError(t, err)
			assert.JSONEq(t, `{"habits":[]}`, string(got))

			require.NoError(t, store.Put(ctx, "organizer_data", []byte(`{"habits":[{"id":"h1"}]}`)))
			got, err = store.Get(ctx, "organizer_data")
			require.NoError(t, err)
			assert.JSONEq(t, `{"habits":[{"id":"h1"}]}`, string(got), "Put must replace the previous value")

			require.NoError(t, store.Delete(ctx, "organizer_data"))
			_, err = store.Get(ctx, "organizer_data")
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)

			assert.NoError(t, store.Delete(ctx, "never-written"), "deleting a missing key is not an error")
		})
	}
}

func TestLocalStores_Clear(t *testing.T) {
	ctx := context.Background()

	for name, open := range localBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)

			require.NoError(t, store.Put(ctx, "organizer_data", []byte(`{}`)))
			require.NoError(t, store.Put(ctx, "kanso:sync_queue", []byte(`{"entries":[]}`)))
			require.NoError(t, store.Append(ctx, domain.AuditRecord{ID: "a1", Entity: "habit", Action: "create", CreatedAt: time.Now()}))

			require.NoError(t, store.Clear(ctx))

			_, err := store.Get(ctx, "organizer_data")
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)
			_, err = store.Get(ctx, "kanso:sync_queue")
			assert.ErrorIs(t, err, domain.ErrKeyNotFound)

			records, err := store.List(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestLocalStores_AuditLog(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, open := range localBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)

			for i, action := range []string{"create", "complete", "delete"} {
				err := store.Append(ctx, domain.AuditRecord{
					ID:        action,
					Entity:    "habit",
					Action:    action,
					Params:    `{"name":"Read"}`,
					OK:        action != "delete",
					Message:   "done",
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				})
				require.NoError(t, err)
			}

			all, err := store.List(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "delete", all[0].Action, "newest record first")
			assert.Equal(t, "create", all[2].Action)
			assert.False(t, all[0].OK)
			assert.True(t, all[1].OK)
			assert.Equal(t, `{"name":"Read"}`, all[1].Params)
			assert.True(t, all[2].CreatedAt.Equal(base))

			limited, err := store.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, "complete", limited[1].Action)
		})
	}
}

func TestSQLiteLocalStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "organizer.db")

	store, err := OpenSQLiteLocalStore(path)
	require.NoError(t, err, "Open must create missing parent directories")
	require.NoError(t, store.Put(ctx, "organizer_data", []byte(`{"lastUpdated":"2024-01-01T00:00:00Z"}`)))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteLocalStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "organizer_data")
	require.NoError(t, err)
	assert.Contains(t, string(got), "2024-01-01")
}

func TestBadgerLocalStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadgerLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "organizer_data", []byte(`{"habits":[]}`)))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerLocalStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "organizer_data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"habits":[]}`, string(got))
}
