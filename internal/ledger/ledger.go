// Package ledger allocates ticket ids and moves tickets through their
// lifecycle. All mutations for one office are serialized by that office's
// lock; ids come from a single counter shared by every office.
package ledger

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"qms/dispatch-service/internal/models"
	"qms/dispatch-service/internal/store"
)

// maxServeAttempts bounds CallNext retries when the conditional update finds
// the head ticket already served.
const maxServeAttempts = 3

var (
	ticketsIssued = expvar.NewInt("tickets_issued_total")
	ticketsServed = expvar.NewInt("tickets_served_total")
)

// QueueState is a consistent read of one office taken under its read lock.
// Office is nil when the office record does not exist.
type QueueState struct {
	Office  *models.Office
	Pending []models.Ticket
}

type Ledger struct {
	store  store.RecordStore
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[int64]*sync.RWMutex

	idMu     sync.Mutex
	lastID   int64
	idLoaded bool
}

func New(recordStore store.RecordStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  recordStore,
		logger: logger.Named("ledger"),
		tracer: otel.Tracer("qms/dispatch-service/ledger"),
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[int64]*sync.RWMutex),
	}
}

// IssueTicket appends a new pending ticket to the office queue.
func (l *Ledger) IssueTicket(ctx context.Context, officeID int64) (ticket models.Ticket, err error) {
	ctx, span := l.startSpan(ctx, "ledger.IssueTicket", officeID)
	defer func() { endSpan(span, err) }()

	lock := l.officeLock(officeID)
	lock.Lock()
	defer lock.Unlock()

	if _, err = l.lookupOffice(ctx, officeID); err != nil {
		return models.Ticket{}, err
	}

	id, err := l.nextID(ctx)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("allocate ticket id: %w", err)
	}

	ticket, err = l.store.InsertTicket(ctx, store.NewTicket{TicketID: id, OfficeID: officeID, CreatedAt: l.now()})
	if err != nil {
		if errors.Is(err, store.ErrOfficeNotFound) {
			err = fmt.Errorf("%w: %d", ErrUnknownOffice, officeID)
			return models.Ticket{}, err
		}
		return models.Ticket{}, err
	}

	ticketsIssued.Add(1)
	span.SetAttributes(attribute.Int64("ticket_id", ticket.TicketID))
	l.logger.Info("ticket issued",
		zap.Int64("office_id", officeID),
		zap.Int64("ticket_id", ticket.TicketID),
	)
	return ticket, nil
}

// CallNext serves the oldest pending ticket of the office.
func (l *Ledger) CallNext(ctx context.Context, officeID int64) (ticket models.Ticket, err error) {
	ctx, span := l.startSpan(ctx, "ledger.CallNext", officeID)
	defer func() { endSpan(span, err) }()

	lock := l.officeLock(officeID)
	lock.Lock()
	defer lock.Unlock()

	if _, err = l.lookupOffice(ctx, officeID); err != nil {
		return models.Ticket{}, err
	}

	target, _ := store.TargetStatus("call_next")
	for attempt := 0; attempt < maxServeAttempts; attempt++ {
		var head []models.Ticket
		head, err = l.store.ListTickets(ctx, store.TicketFilter{OfficeID: &officeID, Status: models.StatusPending, Limit: 1})
		if err != nil {
			return models.Ticket{}, err
		}
		if len(head) == 0 {
			err = ErrEmptyQueue
			return models.Ticket{}, err
		}

		ticket, err = l.store.UpdateTicketStatus(ctx, store.StatusChange{
			TicketID:   head[0].TicketID,
			FromStatus: head[0].Status,
			ToStatus:   target,
			OccurredAt: l.now(),
		})
		if errors.Is(err, store.ErrInvalidState) {
			l.logger.Warn("head ticket already served elsewhere",
				zap.Int64("office_id", officeID),
				zap.Int64("ticket_id", head[0].TicketID),
			)
			continue
		}
		if err != nil {
			return models.Ticket{}, err
		}

		ticketsServed.Add(1)
		span.SetAttributes(attribute.Int64("ticket_id", ticket.TicketID))
		l.logger.Info("ticket served",
			zap.Int64("office_id", officeID),
			zap.Int64("ticket_id", ticket.TicketID),
		)
		return ticket, nil
	}
	return models.Ticket{}, err
}

// ListPending returns the office's pending tickets in issue order.
func (l *Ledger) ListPending(ctx context.Context, officeID int64) ([]models.Ticket, error) {
	lock := l.officeLock(officeID)
	lock.RLock()
	defer lock.RUnlock()
	return l.store.ListPendingTickets(ctx, officeID)
}

// ReadQueue returns the office record and its pending tickets from a single
// read-locked section, so no issue or serve can land between the two reads.
func (l *Ledger) ReadQueue(ctx context.Context, officeID int64) (QueueState, error) {
	lock := l.officeLock(officeID)
	lock.RLock()
	defer lock.RUnlock()

	var state QueueState
	office, err := l.store.GetOffice(ctx, officeID)
	switch {
	case err == nil:
		state.Office = &office
	case !errors.Is(err, store.ErrOfficeNotFound):
		return QueueState{}, err
	}

	state.Pending, err = l.store.ListPendingTickets(ctx, officeID)
	if err != nil {
		return QueueState{}, err
	}
	return state, nil
}

func (l *Ledger) CreateOffice(ctx context.Context, name, details string) (models.Office, error) {
	office, err := l.store.InsertOffice(ctx, name, details)
	if err != nil {
		return models.Office{}, err
	}
	l.logger.Info("office created", zap.Int64("office_id", office.OfficeID), zap.String("name", office.Name))
	return office, nil
}

// DeleteOffice removes an office that has never had a ticket.
func (l *Ledger) DeleteOffice(ctx context.Context, officeID int64) error {
	lock := l.officeLock(officeID)
	lock.Lock()
	defer lock.Unlock()

	err := l.store.DeleteOffice(ctx, officeID)
	switch {
	case errors.Is(err, store.ErrOfficeNotFound):
		return fmt.Errorf("%w: %d", ErrUnknownOffice, officeID)
	case errors.Is(err, store.ErrOfficeHasTickets):
		return fmt.Errorf("%w: %d", ErrDeleteConflict, officeID)
	case err != nil:
		return err
	}

	l.logger.Info("office deleted", zap.Int64("office_id", officeID))
	return nil
}

func (l *Ledger) Office(ctx context.Context, officeID int64) (models.Office, error) {
	return l.lookupOffice(ctx, officeID)
}

func (l *Ledger) ListOffices(ctx context.Context) ([]models.Office, error) {
	return l.store.ListOffices(ctx)
}

func (l *Ledger) ListTickets(ctx context.Context, filter store.TicketFilter) ([]models.Ticket, error) {
	return l.store.ListTickets(ctx, filter)
}

func (l *Ledger) DailyCounts(ctx context.Context) ([]models.DailyCount, error) {
	return l.store.DailyCounts(ctx)
}

func (l *Ledger) lookupOffice(ctx context.Context, officeID int64) (models.Office, error) {
	office, err := l.store.GetOffice(ctx, officeID)
	if errors.Is(err, store.ErrOfficeNotFound) {
		return models.Office{}, fmt.Errorf("%w: %d", ErrUnknownOffice, officeID)
	}
	return office, err
}

// nextID hands out 1 + the highest id ever allocated. The store maximum is
// read once; afterwards the in-process counter only grows, so ids burned by a
// failed insert are never reused. The running process must be the only writer
// of tickets.
func (l *Ledger) nextID(ctx context.Context) (int64, error) {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	if !l.idLoaded {
		highest, err := l.store.MaxTicketID(ctx)
		if err != nil {
			return 0, err
		}
		l.lastID = highest
		l.idLoaded = true
	}
	l.lastID++
	return l.lastID, nil
}

func (l *Ledger) officeLock(officeID int64) *sync.RWMutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	lock, ok := l.locks[officeID]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[officeID] = lock
	}
	return lock
}

func (l *Ledger) startSpan(ctx context.Context, name string, officeID int64) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("office_id", officeID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrEmptyQueue) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
