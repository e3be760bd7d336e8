package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"qms/dispatch-service/internal/models"
)

const issuedLayout = "January 02, 2006 03:04 PM"

// FileWriter writes one text receipt per ticket into Dir.
type FileWriter struct {
	Dir string
	now func() time.Time
}

func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = "tickets"
	}
	return &FileWriter{Dir: dir, now: time.Now}
}

func (w *FileWriter) WriteTicketReceipt(ctx context.Context, ticket models.Ticket, office models.Office) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}

	name := receiptName(ticket)
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, []byte(w.render(ticket, office)), 0o644); err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}
	return Receipt{ID: name, Name: name, Location: path}, nil
}

func (w *FileWriter) render(ticket models.Ticket, office models.Office) string {
	issuedAt := ticket.CreatedAt
	if issuedAt.IsZero() {
		issuedAt = w.now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket Number: %s\n", ticket.TicketNumber)
	b.WriteString("Status: PENDING\n")
	fmt.Fprintf(&b, "Issued on: %s\n", issuedAt.Local().Format(issuedLayout))
	fmt.Fprintf(&b, "Office ID: %d\n", ticket.OfficeID)
	if office.Name != "" {
		fmt.Fprintf(&b, "Office Name: %s\n", office.Name)
	}
	return b.String()
}
