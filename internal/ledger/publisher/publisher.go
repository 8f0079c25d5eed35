// Package publisher feeds ledger receipts to downstream consumers. Receipts are
// buffered in memory and sent in batches by a background worker, so a slow or
// unavailable feed never blocks a ledger write.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"licita/internal/ledger/metrics"
	"licita/internal/ledger/models"
)

// ErrClosed is returned by PublishReceipt once the worker has stopped.
var ErrClosed = errors.New("receipt publisher closed")

// Receipt is the public notice of one recorded transaction. It carries no
// payload; consumers verify the hash against the ledger.
type Receipt struct {
	ID        string `json:"id"`
	Tipo      string `json:"tipo"`
	AtorID    string `json:"ator_id"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// ReceiptFor builds the receipt of tx.
func ReceiptFor(tx *models.Transaction) Receipt {
	return Receipt{
		ID:        tx.ID,
		Tipo:      tx.Kind.String(),
		AtorID:    tx.ActorID,
		Hash:      tx.Hash,
		Timestamp: tx.Timestamp,
	}
}

// Sender delivers a batch of receipts. A batch either succeeds or fails as a
// whole.
type Sender interface {
	Send(ctx context.Context, receipts []Receipt) error
}

// Publisher buffers receipts and drains them through a Sender.
type Publisher struct {
	sender  Sender
	buffer  *RingBuffer[Receipt]
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics

	batchSize     int
	flushInterval time.Duration
	drainTimeout  time.Duration

	notify  chan struct{}
	closed  atomic.Bool
	pending []Receipt // failed batch, retried first; worker-owned
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithBufferSize sets how many receipts may wait before the oldest is dropped.
func WithBufferSize(n int) Option {
	return func(p *Publisher) { p.buffer = NewRingBuffer[Receipt](n) }
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithDrainTimeout bounds the final flush performed when Run stops.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) { p.breaker = cb }
}

// New creates a Publisher. Run must be started for receipts to be sent.
func New(sender Sender, opts ...Option) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("receipt sender is required")
	}
	p := &Publisher{
		sender:        sender,
		buffer:        NewRingBuffer[Receipt](1024),
		breaker:       NewCircuitBreaker(5, 30*time.Second),
		logger:        slog.Default(),
		batchSize:     100,
		flushInterval: time.Second,
		drainTimeout:  5 * time.Second,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishReceipt queues the receipt of tx. It never blocks on the feed.
func (p *Publisher) PublishReceipt(ctx context.Context, tx *models.Transaction) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if tx == nil {
		return errors.New("nil transaction")
	}
	if p.buffer.Enqueue(ReceiptFor(tx)) {
		p.logger.WarnContext(ctx, "receipt buffer full, dropped oldest receipt")
		if p.metrics != nil {
			p.metrics.IncrementReceiptsDropped()
		}
	}
	p.reportDepth()

	p.wake()
	return nil
}

// Pending returns the number of receipts not yet sent.
func (p *Publisher) Pending() int {
	return p.buffer.Len()
}

// Run sends queued receipts until ctx is cancelled, then makes a final
// bounded attempt to drain what is left.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.closed.Store(true)
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.drainTimeout)
			p.flush(drainCtx)
			cancel()
			if left := len(p.pending) + p.buffer.Len(); left > 0 {
				p.logger.Warn("receipt publisher stopped with unsent receipts", "unsent", left)
			}
			return nil
		case <-ticker.C:
			p.flush(ctx)
		case <-p.notify:
			if p.buffer.Len() >= p.batchSize {
				p.flush(ctx)
			}
		}
	}
}

// flush sends batches until the buffer is empty, a send fails or the
// circuit is open.
func (p *Publisher) flush(ctx context.Context) {
	for {
		if !p.breaker.Allow() {
			return
		}
		batch := p.pending
		if len(batch) == 0 {
			batch = p.buffer.DequeueBatch(p.batchSize)
		}
		if len(batch) == 0 {
			return
		}

		if err := p.sender.Send(ctx, batch); err != nil {
			p.pending = batch
			p.breaker.RecordFailure()
			p.logger.ErrorContext(ctx, "failed to send receipts",
				"error", err,
				"batch", len(batch),
				"circuit_open", p.breaker.IsOpen(),
			)
			if p.metrics != nil {
				p.metrics.IncrementReceiptPublishFailed()
			}
			return
		}

		p.pending = nil
		p.breaker.RecordSuccess()
		if p.metrics != nil {
			p.metrics.AddReceiptsSent(len(batch))
		}
		p.reportDepth()
	}
}

func (p *Publisher) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Publisher) reportDepth() {
	if p.metrics != nil {
		p.metrics.SetReceiptQueueDepth(p.buffer.Len())
	}
}
