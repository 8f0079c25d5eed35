package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"licita/internal/ledger/models"
	dErrors "licita/pkg/domain-errors"
	"licita/pkg/platform/sentinel"
	pstrings "licita/pkg/platform/strings"
)

// MaxBatchVerify bounds the number of hashes accepted by VerifyMany.
const MaxBatchVerify = 100

// Verify looks up a transaction by exact hash. An unknown hash, including the
// empty string, yields Found=false rather than an error.
func (s *Service) Verify(ctx context.Context, hash string) (result *models.VerifyResult, err error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveVerify(time.Now())
	}

	if hash == "" {
		s.incrementVerify(false)
		return notFound(), nil
	}

	tx, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementVerify(false)
			return notFound(), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up transaction")
	}

	view, err := tx.View()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored transaction is unreadable")
	}
	s.incrementVerify(true)
	return &models.VerifyResult{Found: true, Transaction: view}, nil
}

// VerifyMany verifies several hashes with one store query. Results follow the
// request order; repeated hashes are reported once.
func (s *Service) VerifyMany(ctx context.Context, hashes []string) (results []models.BatchVerifyResult, err error) {
	ctx, span := s.startSpan(ctx, "VerifyMany", trace.WithAttributes(
		attribute.Int("ledger.batch_size", len(hashes)),
	))
	defer func() { endSpan(span, err) }()

	if len(hashes) > MaxBatchVerify {
		return nil, dErrors.New(dErrors.CodeValidation, "too many hashes in one request")
	}

	unique := pstrings.Dedupe(hashes)
	lookup := pstrings.NonEmpty(unique)
	found := make(map[string]*models.Transaction, len(lookup))
	if len(lookup) > 0 {
		txs, err := s.store.FindByHashes(ctx, lookup)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up transactions")
		}
		for _, tx := range txs {
			found[tx.Hash] = tx
		}
	}

	results = make([]models.BatchVerifyResult, 0, len(unique))
	for _, h := range unique {
		tx, ok := found[h]
		s.incrementVerify(ok)
		if !ok {
			results = append(results, models.BatchVerifyResult{Hash: h, Result: *notFound()})
			continue
		}
		view, err := tx.View()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored transaction is unreadable")
		}
		results = append(results, models.BatchVerifyResult{
			Hash:   h,
			Result: models.VerifyResult{Found: true, Transaction: view},
		})
	}
	return results, nil
}

// History returns the timeline of entityID: every transaction whose actor is
// entityID or whose payload names it as licitacao_id or proposta_id, ordered
// by timestamp then id. The store is queried when iteration starts and again
// on every new range over the returned sequence. A failure is yielded once as
// the final element.
func (s *Service) History(ctx context.Context, entityID string) iter.Seq2[models.Summary, error] {
	return func(yield func(models.Summary, error) bool) {
		if entityID == "" {
			return
		}
		ctx, span := s.startSpan(ctx, "History", trace.WithAttributes(
			attribute.String("ledger.entity_id", entityID),
		))
		var err error
		defer func() { endSpan(span, err) }()

		start := time.Now()
		txs, err := s.store.ListByEntity(ctx, entityID)
		if s.metrics != nil {
			s.metrics.ObserveHistory(start)
		}
		if err != nil {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to load history")
			yield(models.Summary{}, err)
			return
		}
		span.SetAttributes(attribute.Int("ledger.history_len", len(txs)))

		for _, tx := range txs {
			summary, decodeErr := tx.Summary()
			if decodeErr != nil {
				err = dErrors.Wrap(decodeErr, dErrors.CodeInternal, "stored transaction is unreadable")
				yield(models.Summary{}, err)
				return
			}
			if !yield(summary, nil) {
				return
			}
		}
	}
}

// CollectHistory drains History into a slice.
func (s *Service) CollectHistory(ctx context.Context, entityID string) ([]models.Summary, error) {
	summaries := []models.Summary{}
	for summary, err := range s.History(ctx, entityID) {
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Count returns the number of stored transactions.
func (s *Service) Count(ctx context.Context) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "Count")
	defer func() { endSpan(span, err) }()

	n, err = s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count transactions")
	}
	return n, nil
}

func notFound() *models.VerifyResult {
	return &models.VerifyResult{Found: false, Message: models.NotFoundMessage}
}

func (s *Service) incrementVerify(found bool) {
	if s.metrics != nil {
		s.metrics.IncrementVerify(found)
	}
}
