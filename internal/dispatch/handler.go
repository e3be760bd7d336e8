// Package dispatch turns decoded client commands into ledger calls, replies
// and broadcasts.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"

	"qms/dispatch-service/internal/config"
	"qms/dispatch-service/internal/hub"
	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/protocol"
	"qms/dispatch-service/internal/queueview"
	"qms/dispatch-service/internal/receipt"
)

// initialOfficeID is the office whose status is pushed on connect.
const initialOfficeID = 0

type Ledger interface {
	IssueTicket(ctx context.Context, officeID int64) (models.Ticket, error)
	CallNext(ctx context.Context, officeID int64) (models.Ticket, error)
}

type QueueView interface {
	Snapshot(ctx context.Context, officeID int64) (queueview.Snapshot, error)
}

type Registry interface {
	SendTo(client *hub.Client, text string) bool
	BroadcastAll(text string) int
	BroadcastOffice(officeID int64, text string) int
	Subscribe(client *hub.Client, officeID int64)
}

type Options struct {
	BroadcastScope string
	Logger         *zap.Logger
}

type Handler struct {
	ledger   Ledger
	view     QueueView
	registry Registry
	receipts receipt.Writer
	scope    string
	logger   *zap.Logger
}

func NewHandler(l Ledger, view QueueView, registry Registry, receipts receipt.Writer, options Options) *Handler {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := options.BroadcastScope
	if scope != config.ScopeOffice {
		scope = config.ScopeAll
	}
	return &Handler{
		ledger:   l,
		view:     view,
		registry: registry,
		receipts: receipts,
		scope:    scope,
		logger:   logger.Named("dispatch"),
	}
}

// OnConnect greets a new client and pushes the initial queue status.
func (h *Handler) OnConnect(ctx context.Context, client *hub.Client) {
	h.logger.Info("client connected", zap.String("client_id", client.ID), zap.String("remote_addr", client.RemoteAddr))
	h.registry.SendTo(client, protocol.MsgConnected)
	h.sendQueueStatus(ctx, client, initialOfficeID)
}

// HandleMessage processes one inbound message. Failures are reported to the
// sender only; a panic is recovered so the connection survives.
func (h *Handler) HandleMessage(ctx context.Context, client *hub.Client, raw string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while handling message",
				zap.String("client_id", client.ID),
				zap.String("message", raw),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	h.logger.Debug("message from client", zap.String("client_id", client.ID), zap.String("message", raw))
	cmd, err := protocol.ParseCommand(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidOfficeID) {
			h.registry.SendTo(client, protocol.MsgInvalidOffice)
			return
		}
		h.registry.SendTo(client, protocol.MsgInvalidFormat)
		return
	}

	switch cmd.Kind {
	case protocol.CommandNewTicket:
		h.issueTicket(ctx, client, cmd.OfficeID)
	case protocol.CommandNextTicket:
		h.callNext(ctx, client, cmd.OfficeID)
	case protocol.CommandQueueStatus:
		h.registry.Subscribe(client, cmd.OfficeID)
		h.sendQueueStatus(ctx, client, cmd.OfficeID)
	default:
		h.registry.SendTo(client, protocol.UnknownCommand(cmd.Raw))
	}
}

func (h *Handler) issueTicket(ctx context.Context, client *hub.Client, officeID int64) {
	ticket, err := h.ledger.IssueTicket(ctx, officeID)
	if err != nil {
		h.reportError(client, officeID, err, protocol.MsgIssueFailed)
		return
	}
	h.registry.Subscribe(client, officeID)

	officeName := nameOrUnknown(ticket.OfficeName)
	h.registry.SendTo(client, protocol.Issued(ticket, officeName))
	h.broadcastQueueStatus(ctx, client, officeID)

	// The ticket stays issued whatever happens to the receipt.
	office := models.Office{OfficeID: ticket.OfficeID, Name: ticket.OfficeName}
	rec, err := h.receipts.WriteTicketReceipt(ctx, ticket, office)
	if err != nil {
		h.logger.Warn("receipt generation failed",
			zap.Int64("office_id", officeID),
			zap.Int64("ticket_id", ticket.TicketID),
			zap.Error(err),
		)
		h.registry.SendTo(client, protocol.MsgReceiptFailed)
		return
	}
	h.registry.SendTo(client, protocol.ReceiptGenerated(rec.Name))
}

func (h *Handler) callNext(ctx context.Context, client *hub.Client, officeID int64) {
	ticket, err := h.ledger.CallNext(ctx, officeID)
	if err != nil {
		h.reportError(client, officeID, err, protocol.MsgCallFailed)
		return
	}
	h.registry.Subscribe(client, officeID)

	h.broadcast(officeID, protocol.Serving(ticket, nameOrUnknown(ticket.OfficeName)))
	h.broadcastQueueStatus(ctx, client, officeID)
}

func (h *Handler) sendQueueStatus(ctx context.Context, client *hub.Client, officeID int64) {
	snapshot, err := h.view.Snapshot(ctx, officeID)
	if err != nil {
		h.reportError(client, officeID, err, protocol.MsgStatusFailed)
		return
	}
	h.registry.SendTo(client, protocol.QueueStatus(snapshot))
}

func (h *Handler) broadcastQueueStatus(ctx context.Context, client *hub.Client, officeID int64) {
	snapshot, err := h.view.Snapshot(ctx, officeID)
	if err != nil {
		h.reportError(client, officeID, err, protocol.MsgStatusFailed)
		return
	}
	h.broadcast(officeID, protocol.QueueStatus(snapshot))
}

func (h *Handler) broadcast(officeID int64, text string) {
	var delivered int
	if h.scope == config.ScopeOffice {
		delivered = h.registry.BroadcastOffice(officeID, text)
	} else {
		delivered = h.registry.BroadcastAll(text)
	}
	h.logger.Debug("broadcast", zap.Int64("office_id", officeID), zap.Int("delivered", delivered))
}

// reportError maps err to the text sent back to the client. Storage failures
// are logged with detail and reported with storeFailure.
func (h *Handler) reportError(client *hub.Client, officeID int64, err error, storeFailure string) {
	text := describeError(officeID, err, storeFailure)
	if text == storeFailure {
		h.logger.Error("dispatch command failed",
			zap.String("client_id", client.ID),
			zap.Int64("office_id", officeID),
			zap.Error(err),
		)
	}
	h.registry.SendTo(client, text)
}

func describeError(officeID int64, err error, storeFailure string) string {
	switch {
	case errors.Is(err, ledger.ErrEmptyQueue):
		return protocol.MsgEmptyQueue
	case errors.Is(err, ledger.ErrUnknownOffice):
		return protocol.UnknownOffice(officeID)
	default:
		return storeFailure
	}
}

func nameOrUnknown(name string) string {
	if name == "" {
		return queueview.UnknownOfficeName
	}
	return name
}
