package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licita/internal/ledger/models"
	"licita/internal/ledger/store/memory"
	"licita/internal/ledger/store/storetest"
	"licita/pkg/platform/sentinel"
)

// unreachableClient points at a port nothing listens on, so every command fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestFallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewInMemoryStore()
	store := New(inner, unreachableClient(t), time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	tx := storetest.NewTx(t, "tx-1", models.KindDocumento, "u", `{"documento_id":"D-1"}`, 1)
	require.NoError(t, store.Append(ctx, tx), "cache failure must not fail the write")

	found, err := store.FindByHash(ctx, tx.Hash)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	_, err = store.FindByHash(ctx, "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	batch, err := store.FindByHashes(ctx, []string{tx.Hash, "missing"})
	require.NoError(t, err)
	require.Len(t, batch, 1)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "non-cached methods pass through")
}

func TestEntryRoundTrip(t *testing.T) {
	tx := storetest.NewTx(t, "tx-1", models.KindProposta, "biz", `{"licitacao_id":"L-1","valor_proposta":10.5}`, 99)
	raw, err := encode(tx)
	require.NoError(t, err)

	back, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tx, back)

	_, err = decode([]byte("{"))
	require.Error(t, err)
}
