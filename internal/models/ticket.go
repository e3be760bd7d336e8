package models

import (
	"fmt"
	"time"
)

type Ticket struct {
	TicketID     int64      `json:"ticket_id"`
	TicketNumber string     `json:"ticket_number"`
	OfficeID     int64      `json:"office_id"`
	OfficeName   string     `json:"office_name,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ServedAt     *time.Time `json:"served_at,omitempty"`
}

const (
	StatusPending = "pending"
	StatusServed  = "served"
)

// TicketNumber renders the display number clients see for a ticket id.
func TicketNumber(id int64) string {
	return fmt.Sprintf("Ticket-%d", id)
}
