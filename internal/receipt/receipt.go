// Package receipt produces the printed-ticket side effect of issuing a
// ticket. The sink is chosen by RECEIPT_SINK.
package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"qms/dispatch-service/internal/models"
)

const (
	SinkFile  = "file"
	SinkRedis = "redis"
	SinkLog   = "log"
	SinkNoop  = "noop"
	SinkFail  = "fail"
)

// Receipt identifies what a writer produced. Name is what clients are told.
type Receipt struct {
	ID       string
	Name     string
	Location string
}

type Writer interface {
	WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error)
}

type Options struct {
	Dir      string
	RedisKey string
	Redis    *redis.Client
	Logger   *zap.Logger
}

// New returns the writer for kind. Unknown kinds and a redis sink without a
// client fall back to logging.
func New(kind string, options Options) Writer {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("receipt")

	switch kind {
	case SinkFile:
		return NewFileWriter(options.Dir)
	case SinkRedis:
		if options.Redis == nil {
			logger.Warn("redis receipt sink requested without a redis client, logging receipts instead")
			return logWriter{logger: logger}
		}
		return NewRedisWriter(options.Redis, options.RedisKey)
	case SinkNoop:
		return noopWriter{}
	case SinkFail:
		return failWriter{}
	case "", SinkLog:
		return logWriter{logger: logger}
	default:
		logger.Warn("unknown receipt sink, logging receipts instead", zap.String("sink", kind))
		return logWriter{logger: logger}
	}
}

func receiptName(ticket models.Ticket) string {
	return fmt.Sprintf("ticket_%d.txt", ticket.TicketID)
}

type logWriter struct {
	logger *zap.Logger
}

func (w logWriter) WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error) {
	w.logger.Info("ticket receipt",
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int64("office_id", ticket.OfficeID),
		zap.String("office_name", office.Name),
	)
	name := receiptName(ticket)
	return Receipt{ID: name, Name: name, Location: "log"}, nil
}

type noopWriter struct{}

func (noopWriter) WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error) {
	name := receiptName(ticket)
	return Receipt{ID: name, Name: name}, nil
}

type failWriter struct{}

func (failWriter) WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error) {
	return Receipt{}, fmt.Errorf("write receipt: %w", errors.New("receipt sink failure"))
}
