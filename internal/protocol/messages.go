package protocol

import (
	"fmt"
	"strings"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/queueview"
)

const (
	MsgConnected      = "Connected to Queue Management System."
	MsgInvalidFormat  = "Invalid message format."
	MsgInvalidOffice  = "Invalid office ID in message."
	MsgEmptyQueue     = "No tickets in the queue for this office."
	MsgIssueFailed    = "Error issuing a new ticket. Please try again."
	MsgCallFailed     = "Error calling the next ticket. Please try again."
	MsgStatusFailed   = "Error fetching queue status. Please try again."
	MsgReceiptFailed  = "Ticket issued but receipt could not be generated."
	queueStatusPrefix = "Queue Status: "
	queueEmptyText    = "The queue is empty for this office."
	queueItemSep      = ", "
)

func QueueStatus(snapshot queueview.Snapshot) string {
	if snapshot.IsEmpty || len(snapshot.Pending) == 0 {
		return queueStatusPrefix + queueEmptyText
	}
	items := make([]string, 0, len(snapshot.Pending))
	for _, ticket := range snapshot.Pending {
		items = append(items, ticketLabel(ticket, snapshot.OfficeName))
	}
	return queueStatusPrefix + strings.Join(items, queueItemSep)
}

func Serving(ticket models.Ticket, officeName string) string {
	return "Serving: " + ticketLabel(ticket, officeName)
}

func Issued(ticket models.Ticket, officeName string) string {
	return "New ticket issued: " + ticketLabel(ticket, officeName)
}

func UnknownCommand(raw string) string {
	return "Unknown command: " + raw
}

func UnknownOffice(officeID int64) string {
	return fmt.Sprintf("Unknown office: %d.", officeID)
}

func ReceiptGenerated(name string) string {
	return "Ticket receipt generated: " + name
}

// ParseQueueStatus splits a status line back into its ticket labels. The
// bool is false when text is not a status line; an empty queue yields an
// empty slice.
func ParseQueueStatus(text string) ([]string, bool) {
	body, ok := strings.CutPrefix(text, queueStatusPrefix)
	if !ok {
		return nil, false
	}
	if body == queueEmptyText {
		return []string{}, true
	}
	return strings.Split(body, queueItemSep), true
}

func ticketLabel(ticket models.Ticket, officeName string) string {
	number := ticket.TicketNumber
	if number == "" {
		number = models.TicketNumber(ticket.TicketID)
	}
	return number + " (" + officeName + ")"
}
