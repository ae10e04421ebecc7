package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JUNGLI-STORE/jungli-store/internal/repository/orders"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*orders.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*orders.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var out []*orders.OutboxEvent
	for _, e := range m.OutboxEvents {
		if !m.processed(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafkaGo.Message
	// FailOn makes writes of the message with this key fail.
	FailOn string
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if string(m.Key) == w.FailOn {
			return errors.New("broker unavailable")
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

func event(id int64, orderID string) *orders.OutboxEvent {
	return &orders.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   orders.EventOrderPaid,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q,"payment_id":"pay_%d"}`, orderID, id)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "o-1"), event(2, "o-2")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, zap.NewNop())

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, repo.ProcessedIDs)
	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "o-1", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, orders.EventOrderPaid, string(writer.Messages[0].Headers[0].Value))

	// nothing left on the next tick
	assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_StopsOnPublishFailure(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "o-1"), event(2, "o-2"), event(3, "o-3")}}
	writer := &MockWriter{FailOn: "o-2"}
	poller := NewOutboxPoller(repo, writer, zap.NewNop())

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, repo.ProcessedIDs)

	writer.FailOn = ""
	n = poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2, 3}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_RepositoryErrors(t *testing.T) {
	t.Run("fetch fails", func(t *testing.T) {
		repo := &MockRepository{GetErr: errors.New("db down")}
		writer := &MockWriter{}
		poller := NewOutboxPoller(repo, writer, zap.NewNop())

		assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
		assert.Empty(t, writer.Messages)
	})

	t.Run("mark fails", func(t *testing.T) {
		repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "o-1")}, MarkErr: errors.New("db down")}
		writer := &MockWriter{}
		poller := NewOutboxPoller(repo, writer, zap.NewNop())

		assert.Zero(t, poller.processUnpublishedEvents(context.Background()))
		// published anyway; the event is sent again on the next tick
		assert.Len(t, writer.Messages, 1)
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "o-1")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, zap.NewNop())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.ProcessedIDs) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func setupKafka(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	brokerAddr := setupKafka(t)
	createTopic(t, brokerAddr, "order-events")
	time.Sleep(5 * time.Second)

	repo := &MockRepository{OutboxEvents: []*orders.OutboxEvent{event(1, "order-123")}}
	writer := NewKafkaWriter("order-events", brokerAddr)
	poller := NewOutboxPoller(repo, writer, zap.NewNop())
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    "order-events",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(msg.Key))
	assert.JSONEq(t, `{"order_id":"order-123","payment_id":"pay_1"}`, string(msg.Value))

	var eventType string
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, orders.EventOrderPaid, eventType)
}
