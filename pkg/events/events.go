package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/slotlink/api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Subjects
const (
	LoginCompleted = "login.completed"
	BookingCreated = "booking.created"
	BookingDecided = "booking.decided"
)

// Event payloads
type LoginCompletedEvent struct {
	UserID         int64     `json:"user_id"`
	TelegramUserID string    `json:"telegram_user_id"`
	CompletedAt    time.Time `json:"completed_at"`
}

type BookingCreatedEvent struct {
	BookingID    int64     `json:"booking_id"`
	OwnerUserID  int64     `json:"owner_user_id"`
	ClientUserID int64     `json:"client_user_id"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type BookingDecidedEvent struct {
	BookingID int64     `json:"booking_id"`
	OwnerID   int64     `json:"owner_id"`
	Status    string    `json:"status"`
	DecidedAt time.Time `json:"decided_at"`
}
