package store

import "errors"

var (
	ErrOfficeNotFound   = errors.New("office not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrOfficeHasTickets = errors.New("office has tickets")
	ErrInvalidState     = errors.New("invalid ticket state")
	ErrInvalidOffice    = errors.New("office name is required")
)
