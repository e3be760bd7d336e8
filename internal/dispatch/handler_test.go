package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/config"
	"qms/dispatch-service/internal/hub"
	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/queueview"
	"qms/dispatch-service/internal/receipt"
	"qms/dispatch-service/internal/store/memory"
)

type testEnv struct {
	ledger  *ledger.Ledger
	hub     *hub.Hub
	handler *Handler
	office  int64
}

func newTestEnv(t *testing.T, receipts receipt.Writer, scope string) *testEnv {
	t.Helper()
	st := memory.NewStore()
	office, err := st.InsertOffice(context.Background(), "A", "")
	require.NoError(t, err)
	l := ledger.New(st, nil)
	h := hub.New(nil)
	if receipts == nil {
		receipts = receipt.New(receipt.SinkNoop, receipt.Options{})
	}
	return &testEnv{
		ledger:  l,
		hub:     h,
		handler: NewHandler(l, queueview.New(l), h, receipts, Options{BroadcastScope: scope}),
		office:  office.OfficeID,
	}
}

func (e *testEnv) connect(t *testing.T, id string) *hub.Client {
	t.Helper()
	client := hub.NewClient(id, "127.0.0.1:0", 32)
	e.hub.Register(client)
	return client
}

func drain(client *hub.Client) []string {
	var out []string
	for {
		select {
		case msg := <-client.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestOnConnect(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	client := env.connect(t, "c1")

	env.handler.OnConnect(context.Background(), client)
	assert.Equal(t, []string{
		"Connected to Queue Management System.",
		"Queue Status: The queue is empty for this office.",
	}, drain(client))
}

func TestConnectAfterTicketsShowsEmptyInitialQueue(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := env.ledger.IssueTicket(ctx, env.office)
		require.NoError(t, err)
	}

	client := env.connect(t, "late")
	env.handler.OnConnect(ctx, client)
	assert.Equal(t, []string{
		"Connected to Queue Management System.",
		"Queue Status: The queue is empty for this office.",
	}, drain(client))

	env.handler.HandleMessage(ctx, client, "0:queuestatus")
	assert.Equal(t, []string{"Queue Status: The queue is empty for this office."}, drain(client))

	env.handler.HandleMessage(ctx, client, "1:queuestatus")
	assert.Equal(t, []string{"Queue Status: Ticket-1 (A), Ticket-2 (A)"}, drain(client))
}

func TestMalformedMessages(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	sender := env.connect(t, "sender")
	other := env.connect(t, "other")
	ctx := context.Background()

	env.handler.HandleMessage(ctx, sender, "hello")
	env.handler.HandleMessage(ctx, sender, "x:newticket")
	env.handler.HandleMessage(ctx, sender, "1:dance")

	assert.Equal(t, []string{
		"Invalid message format.",
		"Invalid office ID in message.",
		"Unknown command: 1:dance",
	}, drain(sender))
	assert.Empty(t, drain(other))

	pending, err := env.ledger.ListPending(ctx, env.office)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestThreeTicketScenario(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	staff := env.connect(t, "staff")
	viewer := env.connect(t, "viewer")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		env.handler.HandleMessage(ctx, staff, "1:newticket")
	}
	assert.Equal(t, []string{
		"New ticket issued: Ticket-1 (A)",
		"Queue Status: Ticket-1 (A)",
		"Ticket receipt generated: ticket_1.txt",
		"New ticket issued: Ticket-2 (A)",
		"Queue Status: Ticket-1 (A), Ticket-2 (A)",
		"Ticket receipt generated: ticket_2.txt",
		"New ticket issued: Ticket-3 (A)",
		"Queue Status: Ticket-1 (A), Ticket-2 (A), Ticket-3 (A)",
		"Ticket receipt generated: ticket_3.txt",
	}, drain(staff))
	drain(viewer)

	env.handler.HandleMessage(ctx, staff, "1:NEXTTICKET")
	expected := []string{
		"Serving: Ticket-1 (A)",
		"Queue Status: Ticket-2 (A), Ticket-3 (A)",
	}
	assert.Equal(t, expected, drain(staff))
	assert.Equal(t, expected, drain(viewer))

	env.handler.HandleMessage(ctx, viewer, "1:queuestatus")
	assert.Equal(t, []string{"Queue Status: Ticket-2 (A), Ticket-3 (A)"}, drain(viewer))
	assert.Empty(t, drain(staff))
}

func TestNextTicketOnEmptyQueueDoesNotBroadcast(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	sender := env.connect(t, "sender")
	other := env.connect(t, "other")

	env.handler.HandleMessage(context.Background(), sender, "1:nextticket")
	assert.Equal(t, []string{"No tickets in the queue for this office."}, drain(sender))
	assert.Empty(t, drain(other))
}

func TestUnknownOffice(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeAll)
	sender := env.connect(t, "sender")
	other := env.connect(t, "other")
	ctx := context.Background()

	env.handler.HandleMessage(ctx, sender, "99:newticket")
	env.handler.HandleMessage(ctx, sender, "99:nextticket")
	env.handler.HandleMessage(ctx, sender, "99:queuestatus")
	assert.Equal(t, []string{
		"Unknown office: 99.",
		"Unknown office: 99.",
		"Queue Status: The queue is empty for this office.",
	}, drain(sender))
	assert.Empty(t, drain(other))
}

func TestReceiptFailureKeepsTicketIssued(t *testing.T) {
	env := newTestEnv(t, receipt.New(receipt.SinkFail, receipt.Options{}), config.ScopeAll)
	sender := env.connect(t, "sender")
	ctx := context.Background()

	env.handler.HandleMessage(ctx, sender, "1:newticket")
	assert.Equal(t, []string{
		"New ticket issued: Ticket-1 (A)",
		"Queue Status: Ticket-1 (A)",
		"Ticket issued but receipt could not be generated.",
	}, drain(sender))

	pending, err := env.ledger.ListPending(ctx, env.office)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOfficeScopedBroadcast(t *testing.T) {
	env := newTestEnv(t, nil, config.ScopeOffice)
	ctx := context.Background()
	other, err := env.ledger.CreateOffice(ctx, "B", "")
	require.NoError(t, err)

	staffA := env.connect(t, "a")
	watcherB := env.connect(t, "b")
	lobby := env.connect(t, "lobby")
	env.handler.HandleMessage(ctx, watcherB, "2:queuestatus")
	drain(watcherB)
	require.Equal(t, int64(2), other.OfficeID)

	env.handler.HandleMessage(ctx, staffA, "1:newticket")
	assert.Contains(t, drain(lobby), "Queue Status: Ticket-1 (A)")
	assert.Empty(t, drain(watcherB))
}

type fakeLedger struct {
	issueTicket func(ctx context.Context, officeID int64) (models.Ticket, error)
	callNext    func(ctx context.Context, officeID int64) (models.Ticket, error)
}

func (f fakeLedger) IssueTicket(ctx context.Context, officeID int64) (models.Ticket, error) {
	return f.issueTicket(ctx, officeID)
}

func (f fakeLedger) CallNext(ctx context.Context, officeID int64) (models.Ticket, error) {
	return f.callNext(ctx, officeID)
}

type fakeView struct {
	snapshot func(ctx context.Context, officeID int64) (queueview.Snapshot, error)
}

func (f fakeView) Snapshot(ctx context.Context, officeID int64) (queueview.Snapshot, error) {
	return f.snapshot(ctx, officeID)
}

func TestStoreFailuresReportedToSenderOnly(t *testing.T) {
	failure := errors.New("database is locked")
	h := hub.New(nil)
	handler := NewHandler(
		fakeLedger{
			issueTicket: func(ctx context.Context, officeID int64) (models.Ticket, error) { return models.Ticket{}, failure },
			callNext:    func(ctx context.Context, officeID int64) (models.Ticket, error) { return models.Ticket{}, failure },
		},
		fakeView{snapshot: func(ctx context.Context, officeID int64) (queueview.Snapshot, error) {
			return queueview.Snapshot{}, failure
		}},
		h,
		receipt.New(receipt.SinkNoop, receipt.Options{}),
		Options{},
	)
	sender := hub.NewClient("sender", "", 8)
	other := hub.NewClient("other", "", 8)
	h.Register(sender)
	h.Register(other)
	ctx := context.Background()

	handler.HandleMessage(ctx, sender, "1:newticket")
	handler.HandleMessage(ctx, sender, "1:nextticket")
	handler.HandleMessage(ctx, sender, "1:queuestatus")
	assert.Equal(t, []string{
		"Error issuing a new ticket. Please try again.",
		"Error calling the next ticket. Please try again.",
		"Error fetching queue status. Please try again.",
	}, drain(sender))
	assert.Empty(t, drain(other))
}

func TestPanicIsRecovered(t *testing.T) {
	h := hub.New(nil)
	handler := NewHandler(
		fakeLedger{issueTicket: func(ctx context.Context, officeID int64) (models.Ticket, error) { panic("boom") }},
		fakeView{},
		h,
		receipt.New(receipt.SinkNoop, receipt.Options{}),
		Options{},
	)
	client := hub.NewClient("c", "", 4)
	h.Register(client)

	assert.NotPanics(t, func() { handler.HandleMessage(context.Background(), client, "1:newticket") })
	handler.HandleMessage(context.Background(), client, "nope")
	assert.Equal(t, []string{"Invalid message format."}, drain(client))
}
