package models

import (
	"encoding/json"
	"fmt"
)

// Kind classifies the audited business action. The set is open: callers may
// record kinds not listed here.
type Kind string

const (
	KindCadastro   Kind = "cadastro"
	KindLicitacao  Kind = "licitacao"
	KindPublicacao Kind = "publicacao"
	KindProposta   Kind = "proposta"
	KindAvaliacao  Kind = "avaliacao"
	KindDocumento  Kind = "documento"
)

func (k Kind) String() string { return string(k) }

// Payload keys through which a transaction references a business entity other
// than its actor. History queries match on these.
const (
	RefLicitacaoID = "licitacao_id"
	RefPropostaID  = "proposta_id"
)

// Transaction is one immutable ledger record. Payload holds the canonical JSON
// of the attested facts; Hash is computed once at creation and never rewritten.
type Transaction struct {
	ID        string
	Kind      Kind
	ActorID   string
	Payload   json.RawMessage
	Timestamp int64
	Hash      string
	Confirmed bool
}

// DecodePayload returns the payload as generic JSON values (objects become
// map[string]any, numbers float64).
func (t *Transaction) DecodePayload() (any, error) {
	if len(t.Payload) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(t.Payload, &v); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", t.ID, err)
	}
	return v, nil
}

// References reports whether the transaction belongs to entityID's timeline:
// entityID is the actor, or the payload names it as licitacao_id or
// proposta_id. Payload values must be strings to match.
func (t *Transaction) References(entityID string) bool {
	if t.ActorID == entityID {
		return true
	}
	if len(t.Payload) == 0 || t.Payload[0] != '{' {
		return false
	}
	var refs struct {
		LicitacaoID any `json:"licitacao_id"`
		PropostaID  any `json:"proposta_id"`
	}
	if err := json.Unmarshal(t.Payload, &refs); err != nil {
		return false
	}
	if s, ok := refs.LicitacaoID.(string); ok && s == entityID {
		return true
	}
	if s, ok := refs.PropostaID.(string); ok && s == entityID {
		return true
	}
	return false
}

// Less orders transactions for history: timestamp ascending, id as tie-break.
func Less(a, b *Transaction) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}
