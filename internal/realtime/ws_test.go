package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/dispatch-service/internal/dispatch"
	"qms/dispatch-service/internal/hub"
	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/queueview"
	"qms/dispatch-service/internal/receipt"
	"qms/dispatch-service/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	st := memory.NewStore()
	_, err := st.InsertOffice(context.Background(), "Registrar", "")
	require.NoError(t, err)

	l := ledger.New(st, nil)
	h := hub.New(nil)
	handler := dispatch.NewHandler(l, queueview.New(l), h, receipt.New(receipt.SinkNoop, receipt.Options{}), dispatch.Options{})
	server := NewServer(h, handler, Options{SendBuffer: 16, DispatchTimeout: time.Second})

	ts := httptest.NewServer(server.WebSocketHandler())
	t.Cleanup(ts.Close)
	return ts, h
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(message)
}

func TestWebSocketRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	staff := dial(t, ts)

	assert.Equal(t, "Connected to Queue Management System.", readText(t, staff))
	assert.Equal(t, "Queue Status: The queue is empty for this office.", readText(t, staff))

	require.NoError(t, staff.WriteMessage(websocket.TextMessage, []byte("1:newticket")))
	assert.Equal(t, "New ticket issued: Ticket-1 (Registrar)", readText(t, staff))
	assert.Equal(t, "Queue Status: Ticket-1 (Registrar)", readText(t, staff))
	assert.Equal(t, "Ticket receipt generated: ticket_1.txt", readText(t, staff))

	viewer := dial(t, ts)
	readText(t, viewer)
	readText(t, viewer)

	require.NoError(t, staff.WriteMessage(websocket.TextMessage, []byte("1:nextticket")))
	for _, conn := range []*websocket.Conn{staff, viewer} {
		assert.Equal(t, "Serving: Ticket-1 (Registrar)", readText(t, conn))
		assert.Equal(t, "Queue Status: The queue is empty for this office.", readText(t, conn))
	}

	require.NoError(t, viewer.WriteMessage(websocket.TextMessage, []byte("hello")))
	assert.Equal(t, "Invalid message format.", readText(t, viewer))
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	ts, h := newTestServer(t)
	conn := dial(t, ts)
	readText(t, conn)
	require.Equal(t, 1, h.Count())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	assert.Eventually(t, func() bool { return h.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
