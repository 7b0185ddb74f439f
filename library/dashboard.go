package library

import "time"

// DashboardStats is the summary shown on the librarian and member dashboards.
// TotalBorrowed is only filled for librarians and MyBorrowed only for members.
type DashboardStats struct {
	TotalBooks    int `json:"total_books"`
	TotalCopies   int `json:"total_copies"`
	TotalBorrowed int `json:"total_borrowed"`
	MyBorrowed    int `json:"my_borrowed"`
	BooksDueToday int `json:"books_due_today"`
	OverdueCount  int `json:"overdue_count"`
}

// LibrarianDashboard aggregates over every borrowing.
func LibrarianDashboard(books []*Book, borrowings []*Borrowing, now time.Time) DashboardStats {
	stats := catalogStats(books)
	loans := loanStats(borrowings, now, func(*Borrowing) bool { return true })
	stats.TotalBorrowed = loans.unreturned
	stats.BooksDueToday = loans.dueToday
	stats.OverdueCount = loans.overdue
	return stats
}

// MemberDashboard aggregates the catalog globally and the loans of userID only.
func MemberDashboard(books []*Book, borrowings []*Borrowing, userID int64, now time.Time) DashboardStats {
	stats := catalogStats(books)
	loans := loanStats(borrowings, now, func(b *Borrowing) bool { return b.UserID == userID })
	stats.MyBorrowed = loans.unreturned
	stats.BooksDueToday = loans.dueToday
	stats.OverdueCount = loans.overdue
	return stats
}

func catalogStats(books []*Book) DashboardStats {
	var stats DashboardStats
	for _, b := range books {
		if b == nil {
			continue
		}
		stats.TotalBooks++
		stats.TotalCopies += b.TotalCopies
	}
	return stats
}

type loanCounts struct {
	unreturned int
	dueToday   int
	overdue    int
}

func loanStats(borrowings []*Borrowing, now time.Time, include func(*Borrowing) bool) loanCounts {
	var c loanCounts
	for _, b := range borrowings {
		if b == nil || !include(b) {
			continue
		}
		switch Classify(b, now) {
		case StatusReturned:
			continue
		case StatusOverdue:
			c.overdue++
		}
		c.unreturned++
		if IsDueOn(b, now) {
			c.dueToday++
		}
	}
	return c
}

// IsDueOn reports whether b is due on the calendar day of now, in now's location.
// This is a date comparison, not a 24 hour window.
func IsDueOn(b *Borrowing, now time.Time) bool {
	if b.DueAt.IsZero() {
		return false
	}
	dy, dm, dd := b.DueAt.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return dy == ny && dm == nm && dd == nd
}
