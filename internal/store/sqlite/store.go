// Package sqlite stores offices and tickets in a single SQLite file for
// deployments without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store"
)

const ticketColumns = `t.ticket_id, t.ticket_number, t.office_id, o.name, t.status, t.created_at, t.served_at`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetOffice(ctx context.Context, officeID int64) (models.Office, error) {
	var office models.Office
	row := s.db.QueryRowContext(ctx, `SELECT office_id, name, details, created_at FROM offices WHERE office_id = ?`, officeID)
	if err := row.Scan(&office.OfficeID, &office.Name, &office.Details, &office.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Office{}, store.ErrOfficeNotFound
		}
		return models.Office{}, err
	}
	office.CreatedAt = office.CreatedAt.UTC()
	return office, nil
}

func (s *Store) GetOfficeName(ctx context.Context, officeID int64) (string, error) {
	var name string
	if err := s.db.QueryRowContext(ctx, `SELECT name FROM offices WHERE office_id = ?`, officeID).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrOfficeNotFound
		}
		return "", err
	}
	return name, nil
}

func (s *Store) ListOffices(ctx context.Context) ([]models.Office, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT office_id, name, details, created_at FROM offices ORDER BY office_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offices := []models.Office{}
	for rows.Next() {
		var office models.Office
		if err := rows.Scan(&office.OfficeID, &office.Name, &office.Details, &office.CreatedAt); err != nil {
			return nil, err
		}
		office.CreatedAt = office.CreatedAt.UTC()
		offices = append(offices, office)
	}
	return offices, rows.Err()
}

func (s *Store) InsertOffice(ctx context.Context, name, details string) (models.Office, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Office{}, store.ErrInvalidOffice
	}
	office := models.Office{Name: name, Details: details, CreatedAt: time.Now().UTC()}
	result, err := s.db.ExecContext(ctx, `INSERT INTO offices (name, details, created_at) VALUES (?, ?, ?)`, office.Name, office.Details, office.CreatedAt)
	if err != nil {
		return models.Office{}, err
	}
	if office.OfficeID, err = result.LastInsertId(); err != nil {
		return models.Office{}, err
	}
	return office, nil
}

func (s *Store) DeleteOffice(ctx context.Context, officeID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var found int64
	if err = tx.QueryRowContext(ctx, `SELECT office_id FROM offices WHERE office_id = ?`, officeID).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrOfficeNotFound
		}
		return err
	}

	var count int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets WHERE office_id = ?`, officeID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		err = store.ErrOfficeHasTickets
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM offices WHERE office_id = ?`, officeID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertTicket(ctx context.Context, input store.NewTicket) (ticket models.Ticket, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var officeName string
	if err = tx.QueryRowContext(ctx, `SELECT name FROM offices WHERE office_id = ?`, input.OfficeID).Scan(&officeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrOfficeNotFound
		}
		return models.Ticket{}, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	ticket = models.Ticket{
		TicketID:     input.TicketID,
		TicketNumber: models.TicketNumber(input.TicketID),
		OfficeID:     input.OfficeID,
		OfficeName:   officeName,
		Status:       models.StatusPending,
		CreatedAt:    createdAt.UTC(),
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (ticket_id, ticket_number, office_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ticket.TicketID, ticket.TicketNumber, ticket.OfficeID, ticket.Status, ticket.CreatedAt); err != nil {
		return models.Ticket{}, fmt.Errorf("insert ticket %d: %w", input.TicketID, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, change store.StatusChange) (models.Ticket, error) {
	if !store.ValidStatusChange(change.FromStatus, change.ToStatus) {
		return models.Ticket{}, store.ErrInvalidState
	}
	var servedAt interface{}
	if change.ToStatus == models.StatusServed {
		at := change.OccurredAt
		if at.IsZero() {
			at = time.Now()
		}
		servedAt = at.UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = ?, served_at = COALESCE(?, served_at)
		WHERE ticket_id = ? AND status = ?
	`, change.ToStatus, servedAt, change.TicketID, change.FromStatus)
	if err != nil {
		return models.Ticket{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return models.Ticket{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t JOIN offices o ON o.office_id = t.office_id WHERE t.ticket_id = ?`, change.TicketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	if affected == 0 {
		return models.Ticket{}, store.ErrInvalidState
	}
	return ticket, nil
}

func (s *Store) MaxTicketID(ctx context.Context) (int64, error) {
	var highest int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ticket_id), 0) FROM tickets`).Scan(&highest); err != nil {
		return 0, err
	}
	return highest, nil
}

func (s *Store) ListPendingTickets(ctx context.Context, officeID int64) ([]models.Ticket, error) {
	return s.ListTickets(ctx, store.TicketFilter{OfficeID: &officeID, Status: models.StatusPending})
}

func (s *Store) ListTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t JOIN offices o ON o.office_id = t.office_id WHERE 1 = 1`
	args := []interface{}{}
	if filter.OfficeID != nil {
		query += " AND t.office_id = ?"
		args = append(args, *filter.OfficeID)
	}
	if filter.Status != "" {
		query += " AND t.status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY t.ticket_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) CountTickets(ctx context.Context, officeID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets WHERE office_id = ?`, officeID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DailyCounts relies on created_at being written in UTC so the leading
// yyyy-mm-dd of the stored text is the UTC calendar day.
func (s *Store) DailyCounts(ctx context.Context) ([]models.DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(t.created_at, 1, 10) AS day, t.office_id, o.name, t.status, COUNT(1)
		FROM tickets t
		JOIN offices o ON o.office_id = t.office_id
		GROUP BY day, t.office_id, o.name, t.status
		ORDER BY day ASC, t.office_id ASC, t.status ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []models.DailyCount{}
	for rows.Next() {
		var count models.DailyCount
		if err := rows.Scan(&count.Date, &count.OfficeID, &count.OfficeName, &count.Status, &count.Count); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row scanner) (models.Ticket, error) {
	var ticket models.Ticket
	var servedAt sql.NullTime
	if err := row.Scan(&ticket.TicketID, &ticket.TicketNumber, &ticket.OfficeID, &ticket.OfficeName, &ticket.Status, &ticket.CreatedAt, &servedAt); err != nil {
		return models.Ticket{}, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	if servedAt.Valid {
		at := servedAt.Time.UTC()
		ticket.ServedAt = &at
	}
	return ticket, nil
}
