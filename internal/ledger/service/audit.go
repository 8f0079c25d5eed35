package service

import (
	"context"
	"errors"
	"fmt"

	"licita/internal/ledger/models"
	dErrors "licita/pkg/domain-errors"
	"licita/pkg/requestcontext"
)

// LinkFunc stores the ledger hash back on the business record.
type LinkFunc func(ctx context.Context, hash string) error

// CompensateFunc undoes (or flags) a business write whose ledger entry could
// not be recorded. cause is the Record failure.
type CompensateFunc func(ctx context.Context, cause error) error

// Audit records the ledger entry for a business write that has already been
// committed by the caller.
//
// If recording fails, compensate runs and the Record error is returned,
// joined with the compensation error when that fails too. If recording
// succeeds, link stores the hash on the business record; a link failure is
// returned together with the hash because the ledger entry stays verifiable.
func (s *Service) Audit(ctx context.Context, action models.Action, link LinkFunc, compensate CompensateFunc) (string, error) {
	hash, err := s.RecordAction(ctx, action)
	if err != nil {
		if compensate == nil {
			return "", err
		}
		if compErr := compensate(ctx, err); compErr != nil {
			s.incrementCompensation("failed")
			s.logger.ErrorContext(ctx, "compensation after failed ledger write failed",
				"error", compErr,
				"cause", err,
				"kind", action.Kind,
				"actor_id", action.ActorID,
				"request_id", requestcontext.RequestID(ctx),
			)
			return "", errors.Join(err, fmt.Errorf("compensation failed: %w", compErr))
		}
		s.incrementCompensation("ok")
		return "", err
	}

	if link != nil {
		if linkErr := link(ctx, hash); linkErr != nil {
			s.logger.ErrorContext(ctx, "ledger entry recorded but hash was not linked to business record",
				"error", linkErr,
				"hash", hash,
				"kind", action.Kind,
				"request_id", requestcontext.RequestID(ctx),
			)
			return hash, dErrors.Wrap(linkErr, dErrors.CodeInternal, "failed to link ledger hash")
		}
	}
	return hash, nil
}

func (s *Service) incrementCompensation(result string) {
	if s.metrics != nil {
		s.metrics.IncrementCompensation(result)
	}
}
