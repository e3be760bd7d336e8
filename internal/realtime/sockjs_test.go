package realtime

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/igm/sockjs-go/sockjs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"qms/dispatch-service/internal/hub"
)

var errSessionClosed = errors.New("session closed")

// fakeSession feeds queued messages to Recv and fails every Send.
type fakeSession struct {
	sockjs.Session
	incoming chan string
}

func (f *fakeSession) Request() *http.Request { return nil }

func (f *fakeSession) Recv() (string, error) {
	msg, ok := <-f.incoming
	if !ok {
		return "", errSessionClosed
	}
	return msg, nil
}

func (f *fakeSession) Send(string) error { return errSessionClosed }

type greetingDispatcher struct {
	hub *hub.Hub
}

func (d greetingDispatcher) OnConnect(ctx context.Context, client *hub.Client) {
	d.hub.SendTo(client, "hello")
}

func (d greetingDispatcher) HandleMessage(ctx context.Context, client *hub.Client, raw string) {
	d.hub.SendTo(client, "echo: "+raw)
}

func TestSockJSSendFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := hub.New(nil)
	server := NewServer(h, greetingDispatcher{hub: h}, Options{SendBuffer: 4, DispatchTimeout: time.Second, Logger: zap.New(core)})

	session := &fakeSession{incoming: make(chan string, 1)}
	session.incoming <- "1:queuestatus"
	close(session.incoming)

	server.serveSession(session)

	failures := logs.FilterMessage("sockjs send failed, message dropped").All()
	require.Len(t, failures, 2)
	assert.NotEmpty(t, failures[0].ContextMap()["client_id"])
	assert.Equal(t, errSessionClosed.Error(), failures[0].ContextMap()["error"])
	assert.Zero(t, h.Count())
}
