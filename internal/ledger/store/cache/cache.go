// Package cache adds a Redis read-through cache in front of a ledger store.
// Ledger records are immutable, so cached entries never need invalidation;
// the TTL only bounds memory. Misses are not cached because a hash that is
// unknown now may be recorded later.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"licita/internal/ledger/models"
	"licita/internal/ledger/service"
)

const keyPrefix = "ledger:tx:"

// entry is the cached form of a transaction.
type entry struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	ActorID   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	Hash      string          `json:"hash"`
	Confirmed bool            `json:"confirmed"`
}

// Store decorates a service.Store. Redis failures are logged and the call
// falls through to the wrapped store.
type Store struct {
	service.Store
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps inner with a cache on client.
func New(inner service.Store, client redis.Cmdable, ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		Store:  inner,
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append writes through to the wrapped store and primes the cache.
func (s *Store) Append(ctx context.Context, tx *models.Transaction) error {
	if err := s.Store.Append(ctx, tx); err != nil {
		return err
	}
	s.put(ctx, tx)
	return nil
}

func (s *Store) FindByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	raw, err := s.client.Get(ctx, key(hash)).Bytes()
	switch {
	case err == nil:
		tx, decodeErr := decode(raw)
		if decodeErr == nil {
			return tx, nil
		}
		s.logger.WarnContext(ctx, "discarding unreadable cache entry", "error", decodeErr, "hash", hash)
	case !errors.Is(err, redis.Nil):
		s.logger.WarnContext(ctx, "ledger cache read failed", "error", err)
	}

	tx, err := s.Store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	s.put(ctx, tx)
	return tx, nil
}

func (s *Store) FindByHashes(ctx context.Context, hashes []string) ([]*models.Transaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = key(h)
	}

	var (
		out    []*models.Transaction
		misses []string
	)
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "ledger cache batch read failed", "error", err)
		misses = hashes
	} else {
		for i, v := range values {
			str, ok := v.(string)
			if !ok {
				misses = append(misses, hashes[i])
				continue
			}
			tx, decodeErr := decode([]byte(str))
			if decodeErr != nil {
				misses = append(misses, hashes[i])
				continue
			}
			out = append(out, tx)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	found, err := s.Store.FindByHashes(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, tx := range found {
		s.put(ctx, tx)
	}
	return append(out, found...), nil
}

func (s *Store) put(ctx context.Context, tx *models.Transaction) {
	raw, err := encode(tx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode cache entry", "error", err, "hash", tx.Hash)
		return
	}
	if err := s.client.Set(ctx, key(tx.Hash), raw, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "ledger cache write failed", "error", err)
	}
}

func encode(tx *models.Transaction) ([]byte, error) {
	return json.Marshal(entry{
		ID:        tx.ID,
		Kind:      string(tx.Kind),
		ActorID:   tx.ActorID,
		Payload:   tx.Payload,
		Timestamp: tx.Timestamp,
		Hash:      tx.Hash,
		Confirmed: tx.Confirmed,
	})
}

func decode(raw []byte) (*models.Transaction, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &models.Transaction{
		ID:        e.ID,
		Kind:      models.Kind(e.Kind),
		ActorID:   e.ActorID,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		Hash:      e.Hash,
		Confirmed: e.Confirmed,
	}, nil
}

func key(hash string) string {
	return keyPrefix + hash
}
