package models

// JSON names below are the public procurement API field names and are
// embedded by clients that already consume hash_blockchain receipts.

// TransactionView is the verified transaction returned by Verify.
type TransactionView struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"tipo"`
	Payload   any    `json:"dados"`
	Timestamp int64  `json:"timestamp"`
	Confirmed bool   `json:"confirmado"`
}

// VerifyResult is the outcome of a hash lookup. An unknown hash is a normal
// result with Found=false, never an error.
type VerifyResult struct {
	Found       bool             `json:"encontrada"`
	Message     string           `json:"mensagem,omitempty"`
	Transaction *TransactionView `json:"transacao,omitempty"`
}

// NotFoundMessage accompanies a VerifyResult with Found=false.
const NotFoundMessage = "Transação não encontrada"

// Summary is one entry of an entity timeline.
type Summary struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"tipo"`
	Payload   any    `json:"dados"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
}

// BatchVerifyResult reports a VerifyResult per requested hash, in request order.
type BatchVerifyResult struct {
	Hash   string       `json:"hash"`
	Result VerifyResult `json:"resultado"`
}

// ValidationReport is the result of an integrity sweep over the store.
type ValidationReport struct {
	Total   int64    `json:"total"`
	Valid   int64    `json:"validas"`
	Invalid []string `json:"invalidas"`
	Intact  bool     `json:"integra"`
}

// View builds the verify projection of tx.
func (t *Transaction) View() (*TransactionView, error) {
	payload, err := t.DecodePayload()
	if err != nil {
		return nil, err
	}
	return &TransactionView{
		ID:        t.ID,
		Kind:      t.Kind,
		Payload:   payload,
		Timestamp: t.Timestamp,
		Confirmed: t.Confirmed,
	}, nil
}

// Summary builds the history projection of tx.
func (t *Transaction) Summary() (Summary, error) {
	payload, err := t.DecodePayload()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		ID:        t.ID,
		Kind:      t.Kind,
		Payload:   payload,
		Timestamp: t.Timestamp,
		Hash:      t.Hash,
	}, nil
}
