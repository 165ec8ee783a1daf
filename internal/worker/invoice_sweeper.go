package worker

import (
	"context"
	"log"
	"time"

	"github.com/brightpixel/agency-portal/internal/pkg/distlock"
)

// DefaultSweepInterval is how often sent invoices are checked for overdue.
const DefaultSweepInterval = time.Hour

// OverdueMarker flags sent invoices whose due date has passed.
// *invoice.Service implements it.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// InvoiceSweeper moves sent invoices past their due date to overdue.
type InvoiceSweeper struct {
	invoices OverdueMarker
	now      func() time.Time
	job      periodic
}

// NewInvoiceSweeper creates a sweeper. A zero interval uses DefaultSweepInterval.
func NewInvoiceSweeper(invoices OverdueMarker, interval time.Duration, lock distlock.DistLock) *InvoiceSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &InvoiceSweeper{invoices: invoices, now: time.Now}
	s.job = periodic{name: "InvoiceSweeper", interval: interval, lock: lock, fn: s.RunOnce}
	return s
}

// Start blocks until ctx is cancelled.
func (s *InvoiceSweeper) Start(ctx context.Context) {
	s.job.start(ctx)
}

// RunOnce marks overdue invoices as of now.
func (s *InvoiceSweeper) RunOnce(ctx context.Context) error {
	n, err := s.invoices.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[InvoiceSweeper] Marked %d invoices overdue", n)
	}
	return nil
}
