package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/models"
)

func sampleTicket() models.Ticket {
	return models.Ticket{
		TicketID:     12,
		TicketNumber: "Ticket-12",
		OfficeID:     3,
		Status:       models.StatusPending,
		CreatedAt:    time.Date(2024, 3, 14, 15, 4, 0, 0, time.Local),
	}
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tickets")
	writer := NewFileWriter(dir)

	receipt, err := writer.WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{OfficeID: 3, Name: "Registrar"})
	require.NoError(t, err)
	assert.Equal(t, "ticket_12.txt", receipt.Name)
	assert.Equal(t, filepath.Join(dir, "ticket_12.txt"), receipt.Location)

	content, err := os.ReadFile(receipt.Location)
	require.NoError(t, err)
	assert.Equal(t, "Ticket Number: Ticket-12\n"+
		"Status: PENDING\n"+
		"Issued on: March 14, 2024 03:04 PM\n"+
		"Office ID: 3\n"+
		"Office Name: Registrar\n", string(content))
}

func TestFileWriterOmitsUnknownOfficeName(t *testing.T) {
	writer := NewFileWriter(t.TempDir())
	receipt, err := writer.WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{})
	require.NoError(t, err)
	content, err := os.ReadFile(receipt.Location)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Office Name:")
}

func TestFileWriterFailsOnUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewFileWriter(filepath.Join(blocker, "tickets")).WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{})
	assert.Error(t, err)
}

type fakePusher struct {
	key    string
	values []interface{}
	err    error
}

func (f *fakePusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = append(f.values, values...)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(int64(len(f.values)))
	return cmd
}

func TestRedisWriter(t *testing.T) {
	pusher := &fakePusher{}
	writer := NewRedisWriter(pusher, "")

	receipt, err := writer.WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{OfficeID: 3, Name: "Registrar"})
	require.NoError(t, err)
	assert.Equal(t, DefaultRedisKey, pusher.key)
	assert.Equal(t, "ticket_12.txt", receipt.Name)
	assert.NotEmpty(t, receipt.ID)
	require.Len(t, pusher.values, 1)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(pusher.values[0].(string)), &payload))
	assert.Equal(t, "Ticket-12", payload["ticket_number"])
	assert.Equal(t, "Registrar", payload["office_name"])
	assert.Equal(t, receipt.ID, payload["receipt_id"])
}

func TestRedisWriterError(t *testing.T) {
	pusher := &fakePusher{err: errors.New("connection refused")}
	_, err := NewRedisWriter(pusher, "custom").WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write receipt")
	assert.Equal(t, "custom", pusher.key)
}

func TestNewSelectsSink(t *testing.T) {
	assert.IsType(t, &FileWriter{}, New(SinkFile, Options{Dir: t.TempDir()}))
	assert.IsType(t, logWriter{}, New(SinkRedis, Options{}))
	assert.IsType(t, noopWriter{}, New(SinkNoop, Options{}))
	assert.IsType(t, failWriter{}, New(SinkFail, Options{}))
	assert.IsType(t, logWriter{}, New("", Options{}))
	assert.IsType(t, logWriter{}, New("carrier-pigeon", Options{}))

	_, err := New(SinkFail, Options{}).WriteTicketReceipt(context.Background(), sampleTicket(), models.Office{})
	assert.Error(t, err)
}
