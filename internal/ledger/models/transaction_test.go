package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferences(t *testing.T) {
	tx := &Transaction{
		ActorID: "biz-7",
		Payload: []byte(`{"licitacao_id":"L-42","proposta_id":"P-9","valor_proposta":10}`),
	}

	assert.True(t, tx.References("biz-7"), "actor")
	assert.True(t, tx.References("L-42"), "licitacao_id")
	assert.True(t, tx.References("P-9"), "proposta_id")
	assert.False(t, tx.References("L-43"))
	assert.False(t, tx.References("10"), "other payload keys are not references")

	t.Run("non-string reference values never match", func(t *testing.T) {
		numeric := &Transaction{ActorID: "a", Payload: []byte(`{"licitacao_id":42}`)}
		assert.False(t, numeric.References("42"))
	})

	t.Run("non-object payloads only match on actor", func(t *testing.T) {
		list := &Transaction{ActorID: "a", Payload: []byte(`["L-42"]`)}
		assert.False(t, list.References("L-42"))
		assert.True(t, list.References("a"))
	})
}

func TestLess(t *testing.T) {
	early := &Transaction{ID: "b", Timestamp: 1}
	late := &Transaction{ID: "a", Timestamp: 2}
	tie := &Transaction{ID: "c", Timestamp: 1}

	assert.True(t, Less(early, late))
	assert.False(t, Less(late, early))
	assert.True(t, Less(early, tie), "ties break on id")
}

func TestProjections(t *testing.T) {
	tx := &Transaction{
		ID:        "tx-1",
		Kind:      KindCadastro,
		ActorID:   "user-1",
		Payload:   []byte(`{"tipo_usuario":"empresa","usuario":"alice"}`),
		Timestamp: 1700000000000,
		Hash:      "abc",
		Confirmed: true,
	}
	want := map[string]any{"usuario": "alice", "tipo_usuario": "empresa"}

	view, err := tx.View()
	require.NoError(t, err)
	assert.Equal(t, want, view.Payload)
	assert.True(t, view.Confirmed)
	assert.Equal(t, KindCadastro, view.Kind)

	summary, err := tx.Summary()
	require.NoError(t, err)
	assert.Equal(t, want, summary.Payload)
	assert.Equal(t, "abc", summary.Hash)

	t.Run("corrupt payload surfaces an error", func(t *testing.T) {
		bad := &Transaction{ID: "tx-2", Payload: []byte(`{`)}
		_, err := bad.View()
		require.Error(t, err)
	})
}
