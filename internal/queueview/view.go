// Package queueview projects the pending tickets of an office into the
// snapshot that status notifications are rendered from.
package queueview

import (
	"context"

	"qms/dispatch-service/internal/ledger"
	"qms/dispatch-service/internal/models"
)

// UnknownOfficeName labels snapshots of offices without a record.
const UnknownOfficeName = "Unknown Office"

type Snapshot struct {
	OfficeID   int64
	OfficeName string
	Pending    []models.Ticket
	IsEmpty    bool
}

type queueReader interface {
	ReadQueue(ctx context.Context, officeID int64) (ledger.QueueState, error)
}

type View struct {
	reader queueReader
}

func New(reader queueReader) *View {
	return &View{reader: reader}
}

// Snapshot reads the office's queue. An office with no record and no
// tickets yields an empty snapshot rather than an error.
func (v *View) Snapshot(ctx context.Context, officeID int64) (Snapshot, error) {
	state, err := v.reader.ReadQueue(ctx, officeID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		OfficeID:   officeID,
		OfficeName: UnknownOfficeName,
		Pending:    state.Pending,
		IsEmpty:    len(state.Pending) == 0,
	}
	if state.Office != nil {
		snapshot.OfficeName = state.Office.Name
	}
	if snapshot.Pending == nil {
		snapshot.Pending = []models.Ticket{}
	}
	return snapshot, nil
}
