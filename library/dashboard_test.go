package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDashboard_Empty(t *testing.T) {
	assert.Equal(t, DashboardStats{}, LibrarianDashboard(nil, nil, t0))
	assert.Equal(t, DashboardStats{}, MemberDashboard([]*Book{}, []*Borrowing{}, 1, t0))
}

func dashboardFixture() ([]*Book, []*Borrowing) {
	returned := t0.Add(-day)
	today := func(h int) time.Time { return time.Date(2025, 3, 10, h, 0, 0, 0, time.UTC) }

	books := []*Book{
		{ID: 1, TotalCopies: 3, AvailableCopies: 0},
		{ID: 2, TotalCopies: 2, AvailableCopies: 1},
		nil,
		{ID: 3, TotalCopies: 1, AvailableCopies: 1},
	}
	borrowings := []*Borrowing{
		{ID: 1, BookID: 1, UserID: 1, DueAt: today(18)},                           // due later today
		{ID: 2, BookID: 1, UserID: 1, DueAt: today(8)},                            // due earlier today, overdue
		{ID: 3, BookID: 1, UserID: 1, DueAt: t0.Add(-day)},                        // overdue
		{ID: 4, BookID: 2, UserID: 1, DueAt: t0.Add(5 * day)},                     // active
		{ID: 5, BookID: 3, UserID: 1, DueAt: t0.Add(-day), ReturnedAt: &returned}, // returned
		{ID: 6, BookID: 2, UserID: 2, DueAt: t0.Add(-2 * day)},                    // someone else, overdue
		nil,
	}
	return books, borrowings
}

func TestLibrarianDashboard(t *testing.T) {
	books, borrowings := dashboardFixture()

	got := LibrarianDashboard(books, borrowings, t0)

	assert.Equal(t, DashboardStats{
		TotalBooks:    3,
		TotalCopies:   6,
		TotalBorrowed: 5,
		BooksDueToday: 2,
		OverdueCount:  3,
	}, got)
}

func TestMemberDashboard(t *testing.T) {
	books, borrowings := dashboardFixture()

	got := MemberDashboard(books, borrowings, 1, t0)

	assert.Equal(t, DashboardStats{
		TotalBooks:    3,
		TotalCopies:   6,
		MyBorrowed:    4,
		BooksDueToday: 2,
		OverdueCount:  2,
	}, got)

	assert.Equal(t, 0, MemberDashboard(books, borrowings, 99, t0).MyBorrowed)
}

func TestIsDueOn_UsesCalendarDayOfNow(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, est)

	// 22:00 local is still today even though it is tomorrow in UTC.
	assert.True(t, IsDueOn(&Borrowing{DueAt: now.Add(2 * time.Hour).UTC()}, now))
	// Five hours ahead crosses local midnight.
	assert.False(t, IsDueOn(&Borrowing{DueAt: now.Add(5 * time.Hour)}, now))
	assert.True(t, IsDueOn(&Borrowing{DueAt: time.Date(2025, 3, 10, 0, 0, 0, 0, est)}, now))
	assert.False(t, IsDueOn(&Borrowing{}, now))
}
