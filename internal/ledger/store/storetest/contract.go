// Package storetest holds the behaviour every ledger store backend must share.
// Unit tests run it against the in-memory store; integration tests run it
// against Postgres and MongoDB containers.
package storetest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
	"licita/pkg/platform/sentinel"
)

// NewTx builds a hashed transaction from a JSON payload literal.
func NewTx(t testing.TB, id string, kind models.Kind, actorID, payload string, ts int64) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		ID:        id,
		Kind:      kind,
		ActorID:   actorID,
		Payload:   []byte(payload),
		Timestamp: ts,
		Confirmed: true,
	}
	hash, err := models.ComputeHash(tx)
	require.NoError(t, err)
	tx.Hash = hash
	return tx
}

// Run exercises store against the shared contract. newStore must return an
// empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) service.Store) {
	ctx := context.Background()

	t.Run("append then find by hash round-trips every field", func(t *testing.T) {
		store := newStore(t)
		tx := NewTx(t, "tx-1", models.KindCadastro, "user-1",
			`{"tipo_usuario":"empresa","usuario":"alice"}`, 1700000000000)
		require.NoError(t, store.Append(ctx, tx))

		found, err := store.FindByHash(ctx, tx.Hash)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, found.ID)
		assert.Equal(t, tx.Kind, found.Kind)
		assert.Equal(t, tx.ActorID, found.ActorID)
		assert.Equal(t, tx.Timestamp, found.Timestamp)
		assert.Equal(t, tx.Hash, found.Hash)
		assert.True(t, found.Confirmed)
		assert.JSONEq(t, string(tx.Payload), string(found.Payload))

		recomputed, err := models.ComputeHash(found)
		require.NoError(t, err)
		assert.Equal(t, tx.Hash, recomputed, "stored record must reproduce its hash")
	})

	t.Run("unknown hash is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByHash(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, NewTx(t, "tx-dup", models.KindDocumento, "a", `{"n":1}`, 1)))
		err := store.Append(ctx, NewTx(t, "tx-dup", models.KindDocumento, "a", `{"n":2}`, 2))
		require.ErrorIs(t, err, sentinel.ErrConflict)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("duplicate hash is a conflict", func(t *testing.T) {
		store := newStore(t)
		first := NewTx(t, "tx-a", models.KindDocumento, "a", `{"n":1}`, 1)
		require.NoError(t, store.Append(ctx, first))

		second := NewTx(t, "tx-b", models.KindDocumento, "a", `{"n":1}`, 1)
		second.Hash = first.Hash
		require.ErrorIs(t, store.Append(ctx, second), sentinel.ErrConflict)
	})

	t.Run("find by hashes returns only known records", func(t *testing.T) {
		store := newStore(t)
		a := NewTx(t, "tx-a", models.KindLicitacao, "gov-1", `{"licitacao_id":"L-1"}`, 1)
		b := NewTx(t, "tx-b", models.KindLicitacao, "gov-1", `{"licitacao_id":"L-2"}`, 2)
		require.NoError(t, store.Append(ctx, a))
		require.NoError(t, store.Append(ctx, b))

		found, err := store.FindByHashes(ctx, []string{b.Hash, "missing", a.Hash})
		require.NoError(t, err)
		ids := make([]string, 0, len(found))
		for _, tx := range found {
			ids = append(ids, tx.ID)
		}
		sort.Strings(ids)
		assert.Equal(t, []string{"tx-a", "tx-b"}, ids)
	})

	t.Run("list by entity matches actor and payload references", func(t *testing.T) {
		store := newStore(t)
		txs := []*models.Transaction{
			NewTx(t, "t1", models.KindCadastro, "biz-1", `{"usuario":"biz"}`, 10),
			NewTx(t, "t2", models.KindLicitacao, "gov-1", `{"licitacao_id":"L-42"}`, 20),
			NewTx(t, "t3", models.KindProposta, "biz-1", `{"licitacao_id":"L-42","proposta_id":"P-9"}`, 30),
			NewTx(t, "t4", models.KindAvaliacao, "gov-1", `{"proposta_id":"P-9","status":"aprovada"}`, 40),
			NewTx(t, "t5", models.KindLicitacao, "gov-2", `{"licitacao_id":"L-43"}`, 50),
			NewTx(t, "t6", models.KindDocumento, "gov-3", `{"licitacao_id":42}`, 60),
		}
		for _, tx := range txs {
			require.NoError(t, store.Append(ctx, tx))
		}

		cases := map[string][]string{
			"L-42":    {"t2", "t3"},
			"P-9":     {"t3", "t4"},
			"biz-1":   {"t1", "t3"},
			"gov-1":   {"t2", "t4"},
			"42":      nil,
			"nobody":  nil,
			"usuario": nil,
		}
		for entity, want := range cases {
			got, err := store.ListByEntity(ctx, entity)
			require.NoError(t, err, entity)
			assert.Equal(t, want, txIDs(got), entity)
		}
	})

	t.Run("list by entity orders by timestamp then id", func(t *testing.T) {
		store := newStore(t)
		for _, tx := range []*models.Transaction{
			NewTx(t, "c", models.KindProposta, "x", `{"licitacao_id":"L-1"}`, 200),
			NewTx(t, "b", models.KindProposta, "y", `{"licitacao_id":"L-1"}`, 100),
			NewTx(t, "a", models.KindProposta, "z", `{"licitacao_id":"L-1"}`, 200),
		} {
			require.NoError(t, store.Append(ctx, tx))
		}
		got, err := store.ListByEntity(ctx, "L-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, txIDs(got))
	})

	t.Run("count and for each cover every record", func(t *testing.T) {
		store := newStore(t)
		for i, id := range []string{"r1", "r2", "r3"} {
			require.NoError(t, store.Append(ctx, NewTx(t, id, models.KindDocumento, "a", `{"i":"`+id+`"}`, int64(i))))
		}
		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		var seen []string
		require.NoError(t, store.ForEach(ctx, func(tx *models.Transaction) error {
			seen = append(seen, tx.ID)
			return nil
		}))
		sort.Strings(seen)
		assert.Equal(t, []string{"r1", "r2", "r3"}, seen)
	})

	t.Run("for each stops at the first callback error", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Append(ctx, NewTx(t, "s1", models.KindDocumento, "a", `{}`, 1)))
		require.NoError(t, store.Append(ctx, NewTx(t, "s2", models.KindDocumento, "a", `{}`, 2)))

		stop := assert.AnError
		calls := 0
		err := store.ForEach(ctx, func(*models.Transaction) error {
			calls++
			return stop
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func txIDs(txs []*models.Transaction) []string {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return ids
}
