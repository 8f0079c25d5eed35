package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"licita/internal/ledger/models"
	dErrors "licita/pkg/domain-errors"
	"licita/pkg/platform/sentinel"
	"licita/pkg/requestcontext"
)

// Record appends an audit transaction for a business action and returns its
// hash. The timestamp is taken from requestcontext.Now. Record is not
// idempotent: every call produces a new transaction.
func (s *Service) Record(ctx context.Context, kind models.Kind, actorID string, payload any) (hash string, err error) {
	ctx, span := s.startSpan(ctx, "Record", trace.WithAttributes(
		attribute.String("ledger.kind", string(kind)),
	))
	defer func() { endSpan(span, err) }()
	if s.metrics != nil {
		defer s.metrics.ObserveRecord(time.Now())
	}

	if strings.TrimSpace(string(kind)) == "" {
		s.incrementRecordFailure("validation")
		return "", dErrors.New(dErrors.CodeValidation, "kind is required")
	}
	if strings.TrimSpace(actorID) == "" {
		s.incrementRecordFailure("validation")
		return "", dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	if !storableText(string(kind)) || !storableText(actorID) {
		s.incrementRecordFailure("validation")
		return "", dErrors.New(dErrors.CodeValidation, "kind and actor_id must be valid UTF-8 without NUL")
	}

	canonical, err := models.CanonicalPayload(payload)
	if err != nil {
		s.incrementRecordFailure("serialization")
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "payload cannot be serialized")
	}

	tx := &models.Transaction{
		ID:        s.newID(),
		Kind:      kind,
		ActorID:   actorID,
		Payload:   canonical,
		Timestamp: requestcontext.Now(ctx).UnixMilli(),
		Confirmed: true,
	}
	tx.Hash, err = models.ComputeHash(tx)
	if err != nil {
		s.incrementRecordFailure("serialization")
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "payload cannot be serialized")
	}
	span.SetAttributes(attribute.String("ledger.tx_id", tx.ID))

	if err := s.store.Append(ctx, tx); err != nil {
		persistErr := fmt.Errorf("%w: %w", models.ErrPersistence, err)
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementRecordFailure("conflict")
			s.logger.WarnContext(ctx, "ledger write collided with an existing record",
				"tx_id", tx.ID,
				"kind", kind,
				"request_id", requestcontext.RequestID(ctx),
			)
			return "", dErrors.Wrap(persistErr, dErrors.CodeConflict, "transaction id or hash already recorded")
		}
		s.incrementRecordFailure("store")
		s.logger.ErrorContext(ctx, "ledger write failed",
			"error", err,
			"tx_id", tx.ID,
			"kind", kind,
			"request_id", requestcontext.RequestID(ctx),
		)
		return "", dErrors.Wrap(persistErr, dErrors.CodeInternal, "failed to record transaction")
	}

	if s.metrics != nil {
		s.metrics.IncrementRecorded(string(kind))
	}
	s.publishReceipt(ctx, tx)
	return tx.Hash, nil
}

// storableText reports whether s survives every store unchanged.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// RecordAction is Record for a prebuilt Action.
func (s *Service) RecordAction(ctx context.Context, action models.Action) (string, error) {
	return s.Record(ctx, action.Kind, action.ActorID, action.Payload)
}

// publishReceipt hands the committed record to the receipt feed. The write is
// already durable, so failures are logged and counted only.
func (s *Service) publishReceipt(ctx context.Context, tx *models.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReceipt(ctx, tx); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementReceiptPublishFailed()
		}
		s.logger.WarnContext(ctx, "failed to publish ledger receipt",
			"error", err,
			"tx_id", tx.ID,
			"hash", tx.Hash,
		)
	}
}

func (s *Service) incrementRecordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRecordFailure(reason)
	}
}
