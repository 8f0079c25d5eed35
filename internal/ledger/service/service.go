package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"licita/internal/ledger/metrics"
	"licita/internal/ledger/models"
)

// Store persists ledger transactions. Implementations enforce uniqueness of
// id and hash, returning sentinel.ErrConflict on a collision, and
// sentinel.ErrNotFound from FindByHash when no record matches.
type Store interface {
	Append(ctx context.Context, tx *models.Transaction) error
	FindByHash(ctx context.Context, hash string) (*models.Transaction, error)
	// FindByHashes returns the records matching any of hashes, in no particular order.
	FindByHashes(ctx context.Context, hashes []string) ([]*models.Transaction, error)
	// ListByEntity returns the records referencing entityID ordered by
	// timestamp then id.
	ListByEntity(ctx context.Context, entityID string) ([]*models.Transaction, error)
	Count(ctx context.Context) (int64, error)
	// ForEach calls fn for every stored record, stopping at the first error.
	ForEach(ctx context.Context, fn func(*models.Transaction) error) error
}

// ReceiptPublisher forwards committed ledger receipts to downstream consumers.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, tx *models.Transaction) error
}

// Service records and reads audit transactions.
type Service struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher ReceiptPublisher
	newID     func() string
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets the receipt feed notified after each committed write.
func WithPublisher(p ReceiptPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithIDGenerator replaces the random UUID generator. Tests use it to force
// id collisions.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("transaction store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		newID:  func() string { return uuid.NewString() },
		tracer: otel.Tracer("licita/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "ledger."+name, opts...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
