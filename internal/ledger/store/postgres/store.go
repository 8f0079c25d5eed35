package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"licita/internal/ledger/models"
	"licita/pkg/platform/sentinel"
	txcontext "licita/pkg/platform/tx"
)

// Schema creates the ledger table. Uniqueness of id and hash is enforced
// here; the expression indexes serve entity history lookups.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	actor_id     TEXT NOT NULL,
	payload      JSONB NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	hash         TEXT NOT NULL,
	confirmed    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT ledger_transactions_hash_key UNIQUE (hash)
);

CREATE INDEX IF NOT EXISTS ledger_transactions_actor_idx
	ON ledger_transactions (actor_id);
CREATE INDEX IF NOT EXISTS ledger_transactions_licitacao_idx
	ON ledger_transactions ((payload -> 'licitacao_id'));
CREATE INDEX IF NOT EXISTS ledger_transactions_proposta_idx
	ON ledger_transactions ((payload -> 'proposta_id'));
`

const selectColumns = `id, kind, actor_id, payload::text, timestamp_ms, hash, confirmed`

// Store implements the ledger store on PostgreSQL. The payload is kept as
// JSONB; its key order may differ from the canonical form, which is harmless
// because hashes are always recomputed through the canonical encoder.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL ledger store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies Schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins a caller's transaction when one is carried in ctx, so the
// ledger append commits or rolls back with the business write.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (id, kind, actor_id, payload, timestamp_ms, hash, confirmed)
		VALUES ($1, $2, $3, $4::text::jsonb, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		tx.ID,
		string(tx.Kind),
		tx.ActorID,
		payloadParam(tx.Payload),
		tx.Timestamp,
		tx.Hash,
		tx.Confirmed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert ledger transaction %s: %w", tx.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

func (s *Store) FindByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	query := `SELECT ` + selectColumns + ` FROM ledger_transactions WHERE hash = $1`
	tx, err := scanTransaction(s.execer(ctx).QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger transaction by hash: %w", err)
	}
	return tx, nil
}

func (s *Store) FindByHashes(ctx context.Context, hashes []string) ([]*models.Transaction, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	query := `SELECT ` + selectColumns + ` FROM ledger_transactions WHERE hash = ANY($1)`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("query ledger transactions by hash: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListByEntity matches the actor column or a string-valued licitacao_id or
// proposta_id in the payload. Ids are compared with the C collation so ties
// order the same as in Go.
func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]*models.Transaction, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM ledger_transactions
		WHERE actor_id = $1
		   OR payload -> 'licitacao_id' = to_jsonb($1::text)
		   OR payload -> 'proposta_id' = to_jsonb($1::text)
		ORDER BY timestamp_ms ASC, id COLLATE "C" ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger transactions: %w", err)
	}
	return n, nil
}

func (s *Store) ForEach(ctx context.Context, fn func(*models.Transaction) error) error {
	query := `SELECT ` + selectColumns + ` FROM ledger_transactions ORDER BY timestamp_ms ASC, id COLLATE "C" ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("scan ledger transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return fmt.Errorf("scan ledger transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ledger transactions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx      models.Transaction
		kind    string
		payload string
	)
	if err := row.Scan(&tx.ID, &kind, &tx.ActorID, &payload, &tx.Timestamp, &tx.Hash, &tx.Confirmed); err != nil {
		return nil, err
	}
	tx.Kind = models.Kind(kind)
	tx.Payload = []byte(payload)
	return &tx, nil
}

func scanTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transactions: %w", err)
	}
	return out, nil
}

// payloadParam sends the payload as text; the query casts it to JSONB.
func payloadParam(payload []byte) string {
	if len(payload) == 0 {
		return "null"
	}
	return string(payload)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
