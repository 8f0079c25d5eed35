//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"licita/internal/platform/config"
	"licita/internal/platform/kafka"
	"licita/pkg/testutil/containers"
)

func TestProducerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t).Broker
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: []string{broker}, Topic: "ledger.receipts.it"}
	producer, err := kafka.NewProducer(cfg)
	require.NoError(t, err)
	defer func() { _ = producer.Close(ctx) }()

	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))
	require.NoError(t, producer.EnsureTopic(ctx, 1, 1), "existing topic is not an error")
	require.NoError(t, producer.Health(ctx))

	require.NoError(t, producer.ProduceSync(ctx, kafka.Message{
		Key:     []byte("hash-1"),
		Value:   []byte(`{"hash":"hash-1"}`),
		Headers: map[string]string{"kind": "cadastro"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)
	require.Equal(t, "hash-1", string(records[0].Key))
	require.Equal(t, "kind", records[0].Headers[0].Key)
}
