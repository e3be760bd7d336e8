// Package memory keeps offices and tickets in process memory. It backs the
// tests and single-node demos where durability is not required.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	offices      map[int64]models.Office
	tickets      map[int64]models.Ticket
	nextOfficeID int64
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		offices:      make(map[int64]models.Office),
		tickets:      make(map[int64]models.Ticket),
		nextOfficeID: 1,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetOffice(ctx context.Context, officeID int64) (models.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	office, ok := s.offices[officeID]
	if !ok {
		return models.Office{}, store.ErrOfficeNotFound
	}
	return office, nil
}

func (s *Store) GetOfficeName(ctx context.Context, officeID int64) (string, error) {
	office, err := s.GetOffice(ctx, officeID)
	if err != nil {
		return "", err
	}
	return office.Name, nil
}

func (s *Store) ListOffices(ctx context.Context) ([]models.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offices := make([]models.Office, 0, len(s.offices))
	for _, office := range s.offices {
		offices = append(offices, office)
	}
	sort.Slice(offices, func(i, j int) bool { return offices[i].OfficeID < offices[j].OfficeID })
	return offices, nil
}

func (s *Store) InsertOffice(ctx context.Context, name, details string) (models.Office, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Office{}, store.ErrInvalidOffice
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	office := models.Office{
		OfficeID:  s.nextOfficeID,
		Name:      name,
		Details:   details,
		CreatedAt: s.now(),
	}
	s.offices[office.OfficeID] = office
	s.nextOfficeID++
	return office, nil
}

func (s *Store) DeleteOffice(ctx context.Context, officeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offices[officeID]; !ok {
		return store.ErrOfficeNotFound
	}
	for _, ticket := range s.tickets {
		if ticket.OfficeID == officeID {
			return store.ErrOfficeHasTickets
		}
	}
	delete(s.offices, officeID)
	return nil
}

func (s *Store) InsertTicket(ctx context.Context, input store.NewTicket) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	office, ok := s.offices[input.OfficeID]
	if !ok {
		return models.Ticket{}, store.ErrOfficeNotFound
	}
	if _, exists := s.tickets[input.TicketID]; exists {
		return models.Ticket{}, fmt.Errorf("ticket %d already exists", input.TicketID)
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	ticket := models.Ticket{
		TicketID:     input.TicketID,
		TicketNumber: models.TicketNumber(input.TicketID),
		OfficeID:     input.OfficeID,
		Status:       models.StatusPending,
		CreatedAt:    createdAt,
	}
	s.tickets[ticket.TicketID] = ticket
	ticket.OfficeName = office.Name
	return ticket, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, change store.StatusChange) (models.Ticket, error) {
	if !store.ValidStatusChange(change.FromStatus, change.ToStatus) {
		return models.Ticket{}, store.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[change.TicketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if ticket.Status != change.FromStatus {
		return models.Ticket{}, store.ErrInvalidState
	}
	ticket.Status = change.ToStatus
	if change.ToStatus == models.StatusServed {
		at := change.OccurredAt
		if at.IsZero() {
			at = s.now()
		}
		ticket.ServedAt = &at
	}
	s.tickets[ticket.TicketID] = ticket
	return s.withOfficeName(ticket), nil
}

func (s *Store) MaxTicketID(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var highest int64
	for id := range s.tickets {
		if id > highest {
			highest = id
		}
	}
	return highest, nil
}

func (s *Store) ListPendingTickets(ctx context.Context, officeID int64) ([]models.Ticket, error) {
	return s.ListTickets(ctx, store.TicketFilter{OfficeID: &officeID, Status: models.StatusPending})
}

func (s *Store) ListTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tickets := []models.Ticket{}
	for _, ticket := range s.tickets {
		if filter.OfficeID != nil && ticket.OfficeID != *filter.OfficeID {
			continue
		}
		if filter.Status != "" && ticket.Status != filter.Status {
			continue
		}
		tickets = append(tickets, s.withOfficeName(ticket))
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].TicketID < tickets[j].TicketID })
	if filter.Limit > 0 && len(tickets) > filter.Limit {
		tickets = tickets[:filter.Limit]
	}
	return tickets, nil
}

func (s *Store) CountTickets(ctx context.Context, officeID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, ticket := range s.tickets {
		if ticket.OfficeID == officeID {
			count++
		}
	}
	return count, nil
}

func (s *Store) DailyCounts(ctx context.Context) ([]models.DailyCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct {
		date     string
		officeID int64
		status   string
	}
	counts := make(map[key]int)
	for _, ticket := range s.tickets {
		counts[key{ticket.CreatedAt.UTC().Format("2006-01-02"), ticket.OfficeID, ticket.Status}]++
	}
	result := make([]models.DailyCount, 0, len(counts))
	for k, count := range counts {
		result = append(result, models.DailyCount{
			Date:       k.date,
			OfficeID:   k.officeID,
			OfficeName: s.offices[k.officeID].Name,
			Status:     k.status,
			Count:      count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.OfficeID != b.OfficeID {
			return a.OfficeID < b.OfficeID
		}
		return a.Status < b.Status
	})
	return result, nil
}

// withOfficeName must be called with s.mu held.
func (s *Store) withOfficeName(ticket models.Ticket) models.Ticket {
	if office, ok := s.offices[ticket.OfficeID]; ok {
		ticket.OfficeName = office.Name
	}
	return ticket
}
