// Package storetest holds the behaviour every RecordStore driver must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store"
)

// Run exercises a fresh, empty store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.RecordStore) {
	t.Run("office lifecycle", func(t *testing.T) { testOfficeLifecycle(t, newStore(t)) })
	t.Run("blank office name", func(t *testing.T) { testBlankOfficeName(t, newStore(t)) })
	t.Run("ticket for unknown office", func(t *testing.T) { testTicketUnknownOffice(t, newStore(t)) })
	t.Run("pending order", func(t *testing.T) { testPendingOrder(t, newStore(t)) })
	t.Run("office isolation", func(t *testing.T) { testOfficeIsolation(t, newStore(t)) })
	t.Run("conditional status update", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("concurrent status update", func(t *testing.T) { testConcurrentUpdate(t, newStore(t)) })
	t.Run("delete guard", func(t *testing.T) { testDeleteGuard(t, newStore(t)) })
	t.Run("max ticket id", func(t *testing.T) { testMaxTicketID(t, newStore(t)) })
	t.Run("daily counts", func(t *testing.T) { testDailyCounts(t, newStore(t)) })
}

func testOfficeLifecycle(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	office, err := st.InsertOffice(ctx, "Registrar", "Ground floor")
	require.NoError(t, err)
	assert.NotZero(t, office.OfficeID)
	assert.Equal(t, "Registrar", office.Name)

	got, err := st.GetOffice(ctx, office.OfficeID)
	require.NoError(t, err)
	assert.Equal(t, "Ground floor", got.Details)

	name, err := st.GetOfficeName(ctx, office.OfficeID)
	require.NoError(t, err)
	assert.Equal(t, "Registrar", name)

	offices, err := st.ListOffices(ctx)
	require.NoError(t, err)
	require.Len(t, offices, 1)

	require.NoError(t, st.DeleteOffice(ctx, office.OfficeID))
	_, err = st.GetOffice(ctx, office.OfficeID)
	assert.ErrorIs(t, err, store.ErrOfficeNotFound)
	_, err = st.GetOfficeName(ctx, office.OfficeID)
	assert.ErrorIs(t, err, store.ErrOfficeNotFound)
	assert.ErrorIs(t, st.DeleteOffice(ctx, office.OfficeID), store.ErrOfficeNotFound)
}

func testBlankOfficeName(t *testing.T, st store.RecordStore) {
	_, err := st.InsertOffice(context.Background(), "   ", "")
	assert.ErrorIs(t, err, store.ErrInvalidOffice)
}

func testTicketUnknownOffice(t *testing.T, st store.RecordStore) {
	_, err := st.InsertTicket(context.Background(), store.NewTicket{TicketID: 1, OfficeID: 999})
	assert.ErrorIs(t, err, store.ErrOfficeNotFound)
}

func testPendingOrder(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	a := mustOffice(t, st, "A")
	b := mustOffice(t, st, "B")
	for id, office := range map[int64]int64{3: a, 1: a, 2: b, 5: a} {
		_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: id, OfficeID: office})
		require.NoError(t, err)
	}

	pending, err := st.ListPendingTickets(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 5}, ids(pending))
	assert.Equal(t, "Ticket-1", pending[0].TicketNumber)
	assert.Equal(t, "A", pending[0].OfficeName)
	assert.Equal(t, models.StatusPending, pending[0].Status)

	empty, err := st.ListPendingTickets(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, empty)

	all, err := st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 5}, ids(all))

	count, err := st.CountTickets(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testOfficeIsolation(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	a := mustOffice(t, st, "A")
	b := mustOffice(t, st, "B")
	for id, office := range map[int64]int64{1: a, 2: b, 3: b, 4: a} {
		_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: id, OfficeID: office})
		require.NoError(t, err)
	}

	pendingA, err := st.ListPendingTickets(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(pendingA))
	pendingB, err := st.ListPendingTickets(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(pendingB))

	for _, unknown := range []int64{0, b + 100} {
		pending, err := st.ListPendingTickets(ctx, unknown)
		require.NoError(t, err)
		assert.Empty(t, pending, "office %d", unknown)
	}

	zero := int64(0)
	filtered, err := st.ListTickets(ctx, store.TicketFilter{OfficeID: &zero})
	require.NoError(t, err)
	assert.Empty(t, filtered)
	filtered, err = st.ListTickets(ctx, store.TicketFilter{OfficeID: &b, Status: models.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(filtered))
}

func testConditionalUpdate(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	office := mustOffice(t, st, "A")
	_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: 7, OfficeID: office})
	require.NoError(t, err)

	change := store.StatusChange{TicketID: 7, FromStatus: models.StatusPending, ToStatus: models.StatusServed, OccurredAt: time.Now().UTC()}
	served, err := st.UpdateTicketStatus(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, served.Status)
	assert.NotNil(t, served.ServedAt)

	_, err = st.UpdateTicketStatus(ctx, change)
	assert.ErrorIs(t, err, store.ErrInvalidState)

	_, err = st.UpdateTicketStatus(ctx, store.StatusChange{TicketID: 8, FromStatus: models.StatusPending, ToStatus: models.StatusServed})
	assert.ErrorIs(t, err, store.ErrTicketNotFound)

	_, err = st.UpdateTicketStatus(ctx, store.StatusChange{TicketID: 7, FromStatus: models.StatusServed, ToStatus: models.StatusPending})
	assert.ErrorIs(t, err, store.ErrInvalidState)

	pending, err := st.ListPendingTickets(ctx, office)
	require.NoError(t, err)
	assert.Empty(t, pending)

	served2, err := st.ListTickets(ctx, store.TicketFilter{Status: models.StatusServed})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids(served2))
}

func testConcurrentUpdate(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	office := mustOffice(t, st, "A")
	_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: 1, OfficeID: office})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.UpdateTicketStatus(ctx, store.StatusChange{TicketID: 1, FromStatus: models.StatusPending, ToStatus: models.StatusServed})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func testDeleteGuard(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	office := mustOffice(t, st, "A")
	_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: 1, OfficeID: office})
	require.NoError(t, err)
	_, err = st.UpdateTicketStatus(ctx, store.StatusChange{TicketID: 1, FromStatus: models.StatusPending, ToStatus: models.StatusServed})
	require.NoError(t, err)

	assert.ErrorIs(t, st.DeleteOffice(ctx, office), store.ErrOfficeHasTickets)
	_, err = st.GetOffice(ctx, office)
	assert.NoError(t, err)
}

func testMaxTicketID(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	highest, err := st.MaxTicketID(ctx)
	require.NoError(t, err)
	assert.Zero(t, highest)

	office := mustOffice(t, st, "A")
	for _, id := range []int64{4, 9, 2} {
		_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: id, OfficeID: office})
		require.NoError(t, err)
	}
	highest, err = st.MaxTicketID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), highest)
}

func testDailyCounts(t *testing.T, st store.RecordStore) {
	ctx := context.Background()
	office := mustOffice(t, st, "A")
	day := time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
	for id := int64(1); id <= 3; id++ {
		_, err := st.InsertTicket(ctx, store.NewTicket{TicketID: id, OfficeID: office, CreatedAt: day})
		require.NoError(t, err)
	}
	_, err := st.UpdateTicketStatus(ctx, store.StatusChange{TicketID: 1, FromStatus: models.StatusPending, ToStatus: models.StatusServed})
	require.NoError(t, err)

	counts, err := st.DailyCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.DailyCount{Date: "2024-03-14", OfficeID: office, OfficeName: "A", Status: models.StatusPending, Count: 2}, counts[0])
	assert.Equal(t, models.DailyCount{Date: "2024-03-14", OfficeID: office, OfficeName: "A", Status: models.StatusServed, Count: 1}, counts[1])
}

func mustOffice(t *testing.T, st store.RecordStore, name string) int64 {
	t.Helper()
	office, err := st.InsertOffice(context.Background(), name, "")
	require.NoError(t, err)
	return office.OfficeID
}

func ids(tickets []models.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, ticket.TicketID)
	}
	return out
}
