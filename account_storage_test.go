package signin_test

import (
	"context"
	"sync"
	"testing"
	"time"

	signin "github.com/goliatone/go-signin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccountStorage(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()

	_, err := storage.Current(ctx)
	assert.True(t, signin.IsAccountNotFound(err))

	account := signin.StoredAccount{
		UID:          "uid-1",
		Email:        "user@example.com",
		SessionToken: "token",
		Metadata:     map[string]any{"service": "sync"},
	}
	require.NoError(t, storage.Set(ctx, account))

	got, err := storage.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, account, got)

	got.Metadata["service"] = "changed"
	again, err := storage.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "sync", again.Metadata["service"])

	assert.True(t, signin.IsAccountNotFound(storage.SetCurrent(ctx, "missing")))
	require.NoError(t, storage.SetCurrent(ctx, "uid-1"))

	current, err := storage.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", current.UID)

	require.NoError(t, storage.Clear(ctx, "uid-1"))
	_, err = storage.Get(ctx, "uid-1")
	assert.True(t, signin.IsAccountNotFound(err))
	_, err = storage.Current(ctx)
	assert.True(t, signin.IsAccountNotFound(err))

	assert.Error(t, storage.Set(ctx, signin.StoredAccount{Email: "x@example.com"}))
}

func TestMemoryAccountStorageList(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	require.NoError(t, storage.Set(ctx, signin.StoredAccount{UID: "old", Email: "old@example.com", LastLogin: base}))
	require.NoError(t, storage.Set(ctx, signin.StoredAccount{UID: "new", Email: "new@example.com", LastLogin: base.Add(time.Hour)}))

	accounts, err := storage.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "new", accounts[0].UID)
	assert.Equal(t, "old", accounts[1].UID)
}

func TestMemoryAccountStorageConcurrent(t *testing.T) {
	ctx := context.Background()
	storage := signin.NewMemoryAccountStorage()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = storage.Set(ctx, signin.StoredAccount{UID: "uid", Email: "user@example.com"})
			_ = storage.SetCurrent(ctx, "uid")
			_, _ = storage.Current(ctx)
		}()
	}
	wg.Wait()

	current, err := storage.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "uid", current.UID)
}
