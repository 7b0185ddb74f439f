package library

import (
	"fmt"
	"math"
	"time"
)

const day = 24 * time.Hour

// Classify derives the status of a borrowing at now. A loan due exactly at now is
// still active; it becomes overdue only once now is past DueAt.
func Classify(b *Borrowing, now time.Time) Status {
	switch {
	case b.ReturnedAt != nil:
		return StatusReturned
	case b.DueAt.Before(now):
		return StatusOverdue
	default:
		return StatusActive
	}
}

// DaysRemaining returns ceil((DueAt - now) / 1 day). Negative values are days overdue.
func DaysRemaining(b *Borrowing, now time.Time) int {
	return int(math.Ceil(float64(b.DueAt.Sub(now)) / float64(day)))
}

// DueLabel renders the due state of a borrowing for display.
func DueLabel(b *Borrowing, now time.Time) string {
	if b.ReturnedAt != nil {
		return "returned"
	}
	n := DaysRemaining(b, now)
	if Classify(b, now) == StatusOverdue {
		// A loan a few hours late rounds to 0; it is still at least a day overdue.
		return plural(max(-n, 1), "day") + " overdue"
	}
	return plural(n, "day") + " remaining"
}

// FilterOverdue returns the borrowings classified as overdue at now, in input order.
func FilterOverdue[T interface{ loan() *Borrowing }](items []T, now time.Time) []T {
	out := make([]T, 0)
	for _, it := range items {
		if b := it.loan(); b != nil && Classify(b, now) == StatusOverdue {
			out = append(out, it)
		}
	}
	return out
}

func (b *Borrowing) loan() *Borrowing { return b }

func (d *BorrowingDetail) loan() *Borrowing {
	if d == nil {
		return nil
	}
	return &d.Borrowing
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
