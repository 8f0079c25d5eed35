package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"licita/internal/ledger/models"
)

func TestDocumentRoundTrip(t *testing.T) {
	tx := &models.Transaction{
		ID:        "tx-1",
		Kind:      models.KindProposta,
		ActorID:   "biz-1",
		Payload:   []byte(`{"licitacao_id":"L-42","valor_proposta":1500.5}`),
		Timestamp: 1700000000000,
		Hash:      "ab",
		Confirmed: true,
	}

	doc, err := toDocument(tx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"licitacao_id": "L-42", "valor_proposta": 1500.5}, doc.Dados)
	assert.Equal(t, string(tx.Payload), doc.DadosJSON)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded document
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	back := decoded.transaction()
	assert.Equal(t, tx, back, "canonical text must come back byte for byte")
}

func TestDocumentNonObjectPayload(t *testing.T) {
	for name, payload := range map[string]string{
		"array":  `["L-42"]`,
		"string": `"edital"`,
		"empty":  ``,
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := toDocument(&models.Transaction{ID: "x", Payload: []byte(payload)})
			require.NoError(t, err)
			assert.Nil(t, doc.Dados, "only objects are exposed to history filters")
			if payload == "" {
				assert.Equal(t, "null", doc.DadosJSON)
			} else {
				assert.Equal(t, payload, doc.DadosJSON)
			}
		})
	}
}

func TestEntityFilter(t *testing.T) {
	filter := entityFilter("L-42")
	clauses, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, clauses, 3)
	assert.Equal(t, bson.M{"actor_id": "L-42"}, clauses[0])
	assert.Equal(t, bson.M{"dados.licitacao_id": bson.M{"$eq": "L-42", "$type": "string"}}, clauses[1])
	assert.Equal(t, bson.M{"dados.proposta_id": bson.M{"$eq": "L-42", "$type": "string"}}, clauses[2])
}
