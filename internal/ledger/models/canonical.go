package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// canonicalRecord is the hashed document. Field names are part of the hash
// contract and must not change.
type canonicalRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actor_id"`
	Dados     json.RawMessage `json:"dados"`
	Timestamp int64           `json:"timestamp"`
}

var (
	wrapPrefix = []byte(`{"v":`)
	wrapSuffix = []byte(`}`)
	jsonNull   = json.RawMessage("null")
)

// CanonicalPayload serialises v to RFC 8785 canonical JSON. Values that
// encoding/json rejects (channels, funcs, NaN, cyclic data) yield
// ErrSerialization, as do values the canonical form would alter: invalid
// UTF-8, NUL characters and numbers without an exact double representation.
func CanonicalPayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := checkLossless(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	// jcs only accepts an object or array at the top level, so scalars are
	// canonicalised inside a one-key wrapper and unwrapped afterwards.
	wrapped := make([]byte, 0, len(raw)+len(wrapPrefix)+len(wrapSuffix))
	wrapped = append(wrapped, wrapPrefix...)
	wrapped = append(wrapped, raw...)
	wrapped = append(wrapped, wrapSuffix...)

	canonical, err := jcs.Transform(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	canonical = bytes.TrimPrefix(canonical, wrapPrefix)
	canonical = bytes.TrimSuffix(canonical, wrapSuffix)
	return json.RawMessage(canonical), nil
}

// CanonicalRecord returns the canonical bytes hashed for tx.
func CanonicalRecord(tx *Transaction) ([]byte, error) {
	dados := tx.Payload
	if len(dados) == 0 {
		dados = jsonNull
	}
	raw, err := json.Marshal(canonicalRecord{
		ID:        tx.ID,
		Kind:      string(tx.Kind),
		ActorID:   tx.ActorID,
		Dados:     dados,
		Timestamp: tx.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return canonical, nil
}

// ComputeHash returns the lowercase hex SHA-256 of tx's canonical record. It
// reads only id, kind, actor, payload and timestamp.
func ComputeHash(tx *Transaction) (string, error) {
	canonical, err := CanonicalRecord(tx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
