package library

import "time"

// DefaultLoanPeriod is used when a LoanPolicy carries no period.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// LoanPolicy holds the circulation rules that come from configuration.
type LoanPolicy struct {
	LoanPeriod time.Duration
}

// NewLoanPolicy returns a policy lending books for the given number of days.
func NewLoanPolicy(days int) LoanPolicy {
	if days <= 0 {
		return LoanPolicy{LoanPeriod: DefaultLoanPeriod}
	}
	return LoanPolicy{LoanPeriod: time.Duration(days) * 24 * time.Hour}
}

func (p LoanPolicy) period() time.Duration {
	if p.LoanPeriod <= 0 {
		return DefaultLoanPeriod
	}
	return p.LoanPeriod
}

// CanBorrow reports whether a copy of book may be lent to a user whose current
// active borrowing of the same book is existing (nil when there is none).
func CanBorrow(book *Book, existing *Borrowing) bool {
	if book == nil || book.AvailableCopies <= 0 {
		return false
	}
	return !existing.IsActive()
}

// Borrow applies the borrow transition in memory.
//
// Rules:
//
//	GIVEN: a book and the user's active borrowing of it, if any
//	THEN:  a new Borrowing due after the loan period, book.AvailableCopies decremented
//	ERROR: UNAVAILABLE if no copy is on the shelf or the user already holds one
//	ERROR: INVARIANT_VIOLATION if the book's counts are already out of range
//
// The caller must persist the returned borrowing and the updated book in one transaction.
// On error the book is left untouched.
func Borrow(book *Book, user *User, existing *Borrowing, now time.Time, policy LoanPolicy) (*Borrowing, error) {
	if book == nil {
		return nil, NotFoundf("book not found")
	}
	if user == nil {
		return nil, NotFoundf("user not found")
	}
	if err := CheckInvariant(book); err != nil {
		return nil, err
	}

	if existing.IsActive() {
		return nil, Unavailablef("user %d already has %q on loan", user.ID, book.Title)
	}
	if !CanBorrow(book, existing) {
		return nil, Unavailablef("no copies of %q are available", book.Title)
	}

	book.AvailableCopies--
	book.UpdatedAt = now

	return &Borrowing{
		BookID:     book.ID,
		UserID:     user.ID,
		BorrowedAt: now,
		DueAt:      now.Add(policy.period()),
	}, nil
}

// Return applies the return transition in memory: it stamps ReturnedAt and puts the copy
// back on the shelf. A second return fails with ALREADY_RETURNED and changes nothing.
func Return(borrowing *Borrowing, book *Book, now time.Time) error {
	if borrowing == nil {
		return NotFoundf("borrowing not found")
	}
	if borrowing.ReturnedAt != nil {
		return AlreadyReturnedf("borrowing %d was already returned", borrowing.ID)
	}
	if book == nil || book.ID != borrowing.BookID {
		return NotFoundf("book %d not found", borrowing.BookID)
	}
	if err := CheckInvariant(book); err != nil {
		return err
	}
	if book.AvailableCopies >= book.TotalCopies {
		return InvariantViolationf("book %d: return would exceed %d total copies", book.ID, book.TotalCopies)
	}

	returnedAt := now
	borrowing.ReturnedAt = &returnedAt
	book.AvailableCopies++
	book.UpdatedAt = now
	return nil
}

// CanDelete reports whether book may be removed from the catalog.
func CanDelete(book *Book, activeBorrowings []*Borrowing) bool {
	if book == nil {
		return false
	}
	for _, b := range activeBorrowings {
		if b.IsActive() && b.BookID == book.ID {
			return false
		}
	}
	return true
}

// CheckInvariant returns INVARIANT_VIOLATION unless 0 <= available <= total.
func CheckInvariant(book *Book) error {
	switch {
	case book.TotalCopies < 0:
		return InvariantViolationf("book %d has negative total copies (%d)", book.ID, book.TotalCopies)
	case book.AvailableCopies < 0:
		return InvariantViolationf("book %d has negative available copies (%d)", book.ID, book.AvailableCopies)
	case book.AvailableCopies > book.TotalCopies:
		return InvariantViolationf("book %d has %d available copies but only %d total",
			book.ID, book.AvailableCopies, book.TotalCopies)
	}
	return nil
}

// CheckLoanCount verifies that the copies missing from the shelf match the active loans.
func CheckLoanCount(book *Book, activeLoans int) error {
	if err := CheckInvariant(book); err != nil {
		return err
	}
	if book.OnLoan() != activeLoans {
		return InvariantViolationf("book %d has %d copies off the shelf but %d active borrowings",
			book.ID, book.OnLoan(), activeLoans)
	}
	return nil
}
