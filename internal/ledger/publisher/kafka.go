package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"licita/internal/platform/kafka"
)

// producer is the slice of kafka.Producer the sender needs.
type producer interface {
	ProduceSync(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender produces each receipt as one record keyed by its hash.
type KafkaSender struct {
	producer producer
}

func NewKafkaSender(p *kafka.Producer) (*KafkaSender, error) {
	if p == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &KafkaSender{producer: p}, nil
}

func (s *KafkaSender) Send(ctx context.Context, receipts []Receipt) error {
	msgs := make([]kafka.Message, 0, len(receipts))
	for _, r := range receipts {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode receipt %s: %w", r.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(r.Hash),
			Value:   value,
			Headers: map[string]string{"tipo": r.Tipo},
		})
	}
	return s.producer.ProduceSync(ctx, msgs...)
}
