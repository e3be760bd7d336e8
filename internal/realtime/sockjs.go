package realtime

import (
	"net/http"

	"github.com/igm/sockjs-go/sockjs"
	"go.uber.org/zap"
)

// SockJSHandler serves the same protocol to browsers through SockJS. prefix
// must match the mux pattern without its trailing slash.
func (s *Server) SockJSHandler(prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, s.serveSession)
}

func (s *Server) serveSession(session sockjs.Session) {
	remoteAddr := ""
	if req := session.Request(); req != nil {
		remoteAddr = req.RemoteAddr
	}
	client := s.connect(remoteAddr, "sockjs")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := session.Send(msg); err != nil {
				s.logger.Warn("sockjs send failed, message dropped", zap.String("client_id", client.ID), zap.Error(err))
			}
		}
	}()

	reason := "client closed"
	for {
		msg, err := session.Recv()
		if err != nil {
			reason = err.Error()
			break
		}
		s.handle(client, msg)
	}
	s.disconnect(client, reason)
	<-done
}
