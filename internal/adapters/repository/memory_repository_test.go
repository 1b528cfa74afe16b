package repository

import (
	"context"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySnapshotRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySnapshotRepository()

	_, err := repo.Get(ctx, "owner-1", "organizer_data")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	first, err := repo.Save(ctx, "owner-1", "organizer_data", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	second, err := repo.Save(ctx, "owner-1", "organizer_data", []byte(`{"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	_, err = repo.Get(ctx, "owner-2", "organizer_data")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "snapshots are scoped per owner")

	got, err := repo.Get(ctx, "owner-1", "organizer_data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got.Value))

	require.NoError(t, repo.Delete(ctx, "owner-1", "organizer_data"))
	assert.ErrorIs(t, repo.Delete(ctx, "owner-1", "organizer_data"), domain.ErrSnapshotNotFound)
}

func TestInMemoryNotifier(t *testing.T) {
	ctx := context.Background()
	n := NewInMemoryNotifier()

	ch, release, err := n.Subscribe(ctx, "owner-1", "organizer_data")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, "owner-1", "organizer_data"))
	require.NoError(t, n.Publish(ctx, "owner-1", "organizer_data"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	select {
	case <-ch:
		t.Fatal("bursts collapse into one pending signal")
	default:
	}

	release()
	release()
	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, n.Publish(ctx, "owner-1", "organizer_data"))
}

func TestInMemoryAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAccountRepository()

	account, err := domain.NewAccount("acc-1", "me@kanso.app", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, account))

	assert.ErrorIs(t, repo.Create(ctx, account), domain.ErrEmailAlreadyExists)

	got, err := repo.GetByEmail(ctx, "me@kanso.app")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	_, err = repo.GetByEmail(ctx, "other@kanso.app")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
