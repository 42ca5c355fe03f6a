package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

type mockWriter struct {
	msgs     []kafka.Message
	writeErr error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func confirmedOrder() domain.Order {
	return domain.Order{
		ID:         "order-1",
		BusinessID: "cafe-7",
		QuoteID:    "quote-1",
		Item: domain.OrderItem{
			IngredientID: "cups",
			Quantity:     decimal.NewFromInt(40),
			UnitPrice:    decimal.RequireFromString("0.07"),
			TotalPrice:   decimal.RequireFromString("2.80"),
			UseBy:        700,
		},
		TotalCost:        decimal.RequireFromString("2.80"),
		PlacedAt:         28,
		ExpectedDelivery: 52,
		Status:           domain.OrderStatusConfirmed,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w, nil)

	if err := p.Publish(context.Background(), confirmedOrder()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "order-1" {
		t.Errorf("expected key order-1, got %s", msg.Key)
	}

	var e OrderEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if e.Status != "CONFIRMED" || e.TotalCost != "2.80" || e.Type != EventTypeBuyCompleted {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.FailureReason != nil {
		t.Errorf("expected no failure reason, got %q", *e.FailureReason)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed, err=%v", err)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &mockWriter{writeErr: errors.New("broker down")}
	p := NewKafkaPublisher(w, nil)

	err := p.Publish(context.Background(), confirmedOrder())
	if err == nil || !errors.Is(err, w.writeErr) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestNewOrderEvent_FailedOrder(t *testing.T) {
	o := domain.Order{
		ID:            "order-2",
		TotalCost:     decimal.Zero,
		Status:        domain.OrderStatusNoStock,
		FailureReason: "Insufficient stock. Available: 0.00",
	}
	e := NewOrderEvent(o)
	if e.TotalCost != "0.00" {
		t.Errorf("expected total 0.00, got %s", e.TotalCost)
	}
	if e.FailureReason == nil || *e.FailureReason != o.FailureReason {
		t.Errorf("expected failure reason to be carried, got %v", e.FailureReason)
	}
}

func TestLogPublisher_Publish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	o := confirmedOrder()
	o.Status = domain.OrderStatusPriceTooHigh
	o.FailureReason = "Price 0.07 > max acceptable 0.05"
	if err := p.Publish(context.Background(), o); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	entries := logs.FilterMessage("Order event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != string(domain.OrderStatusPriceTooHigh) {
		t.Errorf("unexpected status field %v", fields["status"])
	}
	if fields["failure_reason"] != o.FailureReason {
		t.Errorf("unexpected failure_reason field %v", fields["failure_reason"])
	}
}

func TestKafkaPublisher_Broker(t *testing.T) {
	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}
	conn, err := net.DialTimeout("tcp", broker, time.Second)
	if err != nil {
		t.Skipf("Kafka not available: %v", err)
	}
	conn.Close()

	w := NewKafkaWriter(broker, "market-orders-test")
	p := NewKafkaPublisher(w, nil)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Publish(ctx, confirmedOrder()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}
