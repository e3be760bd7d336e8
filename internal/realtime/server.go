// Package realtime adapts WebSocket and SockJS sessions to hub clients and
// feeds their messages to the dispatcher.
package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qms/dispatch-service/internal/hub"
)

type Dispatcher interface {
	OnConnect(ctx context.Context, client *hub.Client)
	HandleMessage(ctx context.Context, client *hub.Client, raw string)
}

type Registry interface {
	Register(client *hub.Client)
	Unregister(client *hub.Client)
}

type Options struct {
	SendBuffer      int
	DispatchTimeout time.Duration
	Logger          *zap.Logger
}

type Server struct {
	registry   Registry
	dispatcher Dispatcher
	sendBuffer int
	timeout    time.Duration
	logger     *zap.Logger
}

func NewServer(registry Registry, dispatcher Dispatcher, options Options) *Server {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := options.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Server{
		registry:   registry,
		dispatcher: dispatcher,
		sendBuffer: buffer,
		timeout:    options.DispatchTimeout,
		logger:     logger.Named("realtime"),
	}
}

func (s *Server) connect(remoteAddr, transport string) *hub.Client {
	client := hub.NewClient(uuid.NewString(), remoteAddr, s.sendBuffer)
	s.registry.Register(client)
	s.logger.Info("connection opened",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", remoteAddr),
		zap.String("transport", transport),
	)

	ctx, cancel := s.messageContext()
	defer cancel()
	s.dispatcher.OnConnect(ctx, client)
	return client
}

func (s *Server) disconnect(client *hub.Client, reason string) {
	s.registry.Unregister(client)
	s.logger.Info("connection closed",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
		zap.String("reason", reason),
	)
}

func (s *Server) handle(client *hub.Client, raw string) {
	ctx, cancel := s.messageContext()
	defer cancel()
	s.dispatcher.HandleMessage(ctx, client, raw)
}

func (s *Server) messageContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
