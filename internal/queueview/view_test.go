package queueview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store/memory"
)

type fakeReader struct {
	readQueue func(ctx context.Context, officeID int64) (ledger.QueueState, error)
}

func (f fakeReader) ReadQueue(ctx context.Context, officeID int64) (ledger.QueueState, error) {
	return f.readQueue(ctx, officeID)
}

func TestSnapshotFromLedger(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	office, err := st.InsertOffice(ctx, "Registrar", "")
	require.NoError(t, err)
	l := ledger.New(st, nil)
	for i := 0; i < 3; i++ {
		_, err := l.IssueTicket(ctx, office.OfficeID)
		require.NoError(t, err)
	}
	_, err = l.CallNext(ctx, office.OfficeID)
	require.NoError(t, err)

	snapshot, err := New(l).Snapshot(ctx, office.OfficeID)
	require.NoError(t, err)
	assert.Equal(t, "Registrar", snapshot.OfficeName)
	assert.False(t, snapshot.IsEmpty)
	require.Len(t, snapshot.Pending, 2)
	assert.Equal(t, "Ticket-2", snapshot.Pending[0].TicketNumber)
	assert.Equal(t, "Ticket-3", snapshot.Pending[1].TicketNumber)
}

func TestSnapshotUnknownOffice(t *testing.T) {
	l := ledger.New(memory.NewStore(), nil)
	snapshot, err := New(l).Snapshot(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty)
	assert.Empty(t, snapshot.Pending)
	assert.Equal(t, UnknownOfficeName, snapshot.OfficeName)
}

func TestSnapshotOrphanTicketsKeepFallbackName(t *testing.T) {
	view := New(fakeReader{readQueue: func(ctx context.Context, officeID int64) (ledger.QueueState, error) {
		return ledger.QueueState{Pending: []models.Ticket{{TicketID: 9, TicketNumber: "Ticket-9", OfficeID: officeID}}}, nil
	}})
	snapshot, err := view.Snapshot(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, UnknownOfficeName, snapshot.OfficeName)
	assert.False(t, snapshot.IsEmpty)
}

func TestSnapshotPropagatesStoreErrors(t *testing.T) {
	failure := errors.New("db down")
	view := New(fakeReader{readQueue: func(ctx context.Context, officeID int64) (ledger.QueueState, error) {
		return ledger.QueueState{}, failure
	}})
	_, err := view.Snapshot(context.Background(), 1)
	assert.ErrorIs(t, err, failure)
}
