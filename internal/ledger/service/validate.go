package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"licita/internal/ledger/models"
	dErrors "licita/pkg/domain-errors"
)

// Validate recomputes the hash of every stored transaction and reports the
// ids whose stored hash no longer matches. It never rewrites a record.
func (s *Service) Validate(ctx context.Context) (report *models.ValidationReport, err error) {
	ctx, span := s.startSpan(ctx, "Validate")
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveValidate(time.Now())
	}

	report = &models.ValidationReport{Invalid: []string{}}
	err = s.store.ForEach(ctx, func(tx *models.Transaction) error {
		report.Total++
		want, hashErr := models.ComputeHash(tx)
		if hashErr != nil || want != tx.Hash {
			report.Invalid = append(report.Invalid, tx.ID)
			return nil
		}
		report.Valid++
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan transactions")
	}
	report.Intact = len(report.Invalid) == 0

	span.SetAttributes(
		attribute.Int64("ledger.total", report.Total),
		attribute.Int("ledger.invalid", len(report.Invalid)),
	)
	if s.metrics != nil {
		s.metrics.SetIntegrityMismatches(len(report.Invalid))
	}
	if !report.Intact {
		s.logger.ErrorContext(ctx, "ledger integrity sweep found mismatched hashes",
			"total", report.Total,
			"invalid", len(report.Invalid),
			"ids", report.Invalid,
		)
	}
	return report, nil
}
