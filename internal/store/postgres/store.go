package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store"
)

const ticketColumns = `t.ticket_id, t.ticket_number, t.office_id, o.name, t.status, t.created_at, t.served_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetOffice(ctx context.Context, officeID int64) (models.Office, error) {
	var office models.Office
	row := s.pool.QueryRow(ctx, `
		SELECT office_id, name, details, created_at
		FROM offices
		WHERE office_id = $1
	`, officeID)
	if err := row.Scan(&office.OfficeID, &office.Name, &office.Details, &office.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Office{}, store.ErrOfficeNotFound
		}
		return models.Office{}, err
	}
	return office, nil
}

func (s *Store) GetOfficeName(ctx context.Context, officeID int64) (string, error) {
	var name string
	if err := s.pool.QueryRow(ctx, `SELECT name FROM offices WHERE office_id = $1`, officeID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrOfficeNotFound
		}
		return "", err
	}
	return name, nil
}

func (s *Store) ListOffices(ctx context.Context) ([]models.Office, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT office_id, name, details, created_at
		FROM offices
		ORDER BY office_id ASC
	`)
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
		offices = append(offices, office)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return offices, nil
}

func (s *Store) InsertOffice(ctx context.Context, name, details string) (models.Office, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Office{}, store.ErrInvalidOffice
	}
	office := models.Office{Name: name, Details: details}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO offices (name, details, created_at)
		VALUES ($1, $2, $3)
		RETURNING office_id, created_at
	`, name, details, time.Now().UTC())
	if err := row.Scan(&office.OfficeID, &office.CreatedAt); err != nil {
		return models.Office{}, err
	}
	return office, nil
}

func (s *Store) DeleteOffice(ctx context.Context, officeID int64) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked int64
	if err = tx.QueryRow(ctx, `SELECT office_id FROM offices WHERE office_id = $1 FOR UPDATE`, officeID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOfficeNotFound
		}
		return err
	}

	var count int
	if err = tx.QueryRow(ctx, `SELECT COUNT(1) FROM tickets WHERE office_id = $1`, officeID).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		err = store.ErrOfficeHasTickets
		return err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM offices WHERE office_id = $1`, officeID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InsertTicket(ctx context.Context, input store.NewTicket) (ticket models.Ticket, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var officeName string
	if err = tx.QueryRow(ctx, `SELECT name FROM offices WHERE office_id = $1`, input.OfficeID).Scan(&officeName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOfficeNotFound
		}
		return models.Ticket{}, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	ticket = models.Ticket{
		TicketID:     input.TicketID,
		TicketNumber: models.TicketNumber(input.TicketID),
		OfficeID:     input.OfficeID,
		OfficeName:   officeName,
		Status:       models.StatusPending,
		CreatedAt:    createdAt,
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO tickets (ticket_id, ticket_number, office_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ticket.TicketID, ticket.TicketNumber, ticket.OfficeID, ticket.Status, ticket.CreatedAt); err != nil {
		return models.Ticket{}, fmt.Errorf("insert ticket %d: %w", input.TicketID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, change store.StatusChange) (models.Ticket, error) {
	if !store.ValidStatusChange(change.FromStatus, change.ToStatus) {
		return models.Ticket{}, store.ErrInvalidState
	}
	var servedAt *time.Time
	if change.ToStatus == models.StatusServed {
		at := change.OccurredAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		servedAt = &at
	}

	row := s.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE tickets
			SET status = $3,
				served_at = COALESCE($4::timestamptz, served_at)
			WHERE ticket_id = $1 AND status = $2
			RETURNING ticket_id, ticket_number, office_id, status, created_at, served_at
		)
		SELECT t.ticket_id, t.ticket_number, t.office_id, o.name, t.status, t.created_at, t.served_at
		FROM updated t
		JOIN offices o ON o.office_id = t.office_id
	`, change.TicketID, change.FromStatus, change.ToStatus, servedAt)
	ticket, err := scanTicket(row)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Ticket{}, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_id = $1)`, change.TicketID).Scan(&exists); err != nil {
		return models.Ticket{}, err
	}
	if !exists {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return models.Ticket{}, store.ErrInvalidState
}

func (s *Store) MaxTicketID(ctx context.Context) (int64, error) {
	var highest int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(ticket_id), 0) FROM tickets`).Scan(&highest); err != nil {
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
		args = append(args, *filter.OfficeID)
		query += fmt.Sprintf(" AND t.office_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	query += " ORDER BY t.ticket_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) CountTickets(ctx context.Context, officeID int64) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM tickets WHERE office_id = $1`, officeID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) DailyCounts(ctx context.Context) ([]models.DailyCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(t.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, t.office_id, o.name, t.status, COUNT(1)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
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
