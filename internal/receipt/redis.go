package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"qms/dispatch-service/internal/models"
)

const DefaultRedisKey = "qms:receipts"

type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

type redisReceipt struct {
	ReceiptID    string    `json:"receipt_id"`
	TicketID     int64     `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	Status       string    `json:"status"`
	OfficeID     int64     `json:"office_id"`
	OfficeName   string    `json:"office_name,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RedisWriter queues receipts on a Redis list for a print station to pop.
type RedisWriter struct {
	client listPusher
	key    string
}

func NewRedisWriter(client listPusher, key string) *RedisWriter {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisWriter{client: client, key: key}
}

func (w *RedisWriter) WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error) {
	payload := redisReceipt{
		ReceiptID:    uuid.NewString(),
		TicketID:     ticket.TicketID,
		TicketNumber: ticket.TicketNumber,
		Status:       models.StatusPending,
		OfficeID:     ticket.OfficeID,
		OfficeName:   office.Name,
		IssuedAt:     ticket.CreatedAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}
	if err := w.client.RPush(ctx, w.key, string(body)).Err(); err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}
	return Receipt{ID: payload.ReceiptID, Name: receiptName(ticket), Location: w.key}, nil
}
