package store

import (
	"context"
	"time"

	"qms/dispatch-service/internal/models"
)

type NewTicket struct {
	TicketID  int64
	OfficeID  int64
	CreatedAt time.Time
}

type StatusChange struct {
	TicketID   int64
	FromStatus string
	ToStatus   string
	OccurredAt time.Time
}

// TicketFilter narrows ListTickets. A nil OfficeID lists every office; a set
// one matches exactly, so the unused id 0 yields nothing.
type TicketFilter struct {
	OfficeID *int64
	Status   string
	Limit    int
}

// RecordStore is the durable side of the ledger. Implementations must make
// UpdateTicketStatus conditional on FromStatus so a ticket can only leave a
// state once.
type RecordStore interface {
	GetOffice(ctx context.Context, officeID int64) (models.Office, error)
	GetOfficeName(ctx context.Context, officeID int64) (string, error)
	ListOffices(ctx context.Context) ([]models.Office, error)
	InsertOffice(ctx context.Context, name, details string) (models.Office, error)
	DeleteOffice(ctx context.Context, officeID int64) error

	InsertTicket(ctx context.Context, input NewTicket) (models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, change StatusChange) (models.Ticket, error)
	MaxTicketID(ctx context.Context) (int64, error)
	ListPendingTickets(ctx context.Context, officeID int64) ([]models.Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error)
	CountTickets(ctx context.Context, officeID int64) (int, error)
	DailyCounts(ctx context.Context) ([]models.DailyCount, error)
}
