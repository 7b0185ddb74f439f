package library

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newManager(t *testing.T, opts ...Option) (*LibraryManager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	opts = append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	mgr, err := NewLibraryManager(filepath.Join(t.TempDir(), "lib.db"), opts...)
	require.NoError(t, err, "mgr")
	t.Cleanup(func() { mgr.Close() })
	return mgr, clock
}

func session(t *testing.T, mgr *LibraryManager, name string, typ UserType) *Session {
	t.Helper()
	ctx := context.Background()
	id, err := mgr.AddUser(ctx, name, name+"@example.com", typ, "")
	require.NoError(t, err)
	s, err := mgr.SessionFor(ctx, id)
	require.NoError(t, err)
	return s
}

func TestManager_OnlyLibrariansManageCatalog(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	member := session(t, mgr, "mem", Member)

	_, err := mgr.AddBook(ctx, member, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = mgr.AddBook(ctx, nil, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	require.ErrorIs(t, err, ErrForbidden)

	book, err := mgr.AddBook(ctx, librarian, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.DeleteBook(ctx, member, book.ID), ErrForbidden)
	_, err = mgr.SetTotalCopies(ctx, member, book.ID, 4)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestManager_BorrowUsesConfiguredPolicy(t *testing.T) {
	mgr, _ := newManager(t, WithLoanPolicy(NewLoanPolicy(7)))
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	member := session(t, mgr, "mem", Member)

	book, err := mgr.AddBook(ctx, librarian, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	require.NoError(t, err)

	b, err := mgr.Borrow(ctx, member, book.ID)
	require.NoError(t, err)
	assert.True(t, b.DueAt.Equal(t0.Add(7*day)))
	assert.Equal(t, member.User.ID, b.UserID)

	_, err = mgr.Borrow(ctx, librarian, book.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestManager_MembersReturnOnlyTheirOwnLoans(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	alice := session(t, mgr, "alice", Member)
	bob := session(t, mgr, "bob", Member)

	book, err := mgr.AddBook(ctx, librarian, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 2})
	require.NoError(t, err)
	b1, err := mgr.Borrow(ctx, alice, book.ID)
	require.NoError(t, err)
	b2, err := mgr.Borrow(ctx, bob, book.ID)
	require.NoError(t, err)

	_, err = mgr.Return(ctx, bob, b1.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = mgr.Return(ctx, alice, b1.ID)
	require.NoError(t, err)
	_, err = mgr.Return(ctx, librarian, b2.ID)
	require.NoError(t, err)

	_, err = mgr.Return(ctx, alice, b1.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	stored, err := mgr.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AvailableCopies)
}

func TestManager_OverdueAndDashboards(t *testing.T) {
	mgr, clock := newManager(t, WithLoanPolicy(NewLoanPolicy(14)))
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	alice := session(t, mgr, "alice", Member)
	bob := session(t, mgr, "bob", Member)

	dune, err := mgr.AddBook(ctx, librarian, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 2})
	require.NoError(t, err)
	emma, err := mgr.AddBook(ctx, librarian, &Book{Title: "Emma", Author: "Austen", TotalCopies: 1})
	require.NoError(t, err)

	_, err = mgr.Borrow(ctx, alice, dune.ID)
	require.NoError(t, err)
	clock.Advance(3 * day)
	_, err = mgr.Borrow(ctx, bob, dune.ID)
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, alice, emma.ID)
	require.NoError(t, err)

	// alice's first loan is now one day late; the other two are due in two days.
	clock.Advance(12 * day)

	overdue, err := mgr.Overdue(ctx, librarian)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Dune", overdue[0].Book.Title)
	assert.Equal(t, alice.User.ID, overdue[0].UserID)

	_, err = mgr.Overdue(ctx, alice)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := mgr.MyOverdue(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, mine)

	stats, err := mgr.Dashboard(ctx, librarian)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{TotalBooks: 2, TotalCopies: 3, TotalBorrowed: 3, OverdueCount: 1}, stats)

	stats, err = mgr.Dashboard(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{TotalBooks: 2, TotalCopies: 3, MyBorrowed: 2, OverdueCount: 1}, stats)

	_, err = mgr.LibrarianDashboard(ctx, alice)
	assert.ErrorIs(t, err, ErrForbidden)

	clock.Advance(2 * day)
	stats, err = mgr.MemberDashboard(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BooksDueToday)
	assert.Equal(t, 0, stats.OverdueCount)
}

func TestManager_ListBorrowingsScopedBySession(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)
	alice := session(t, mgr, "alice", Member)
	bob := session(t, mgr, "bob", Member)

	for _, title := range []string{"Dune", "Emma", "Neuromancer"} {
		b, err := mgr.AddBook(ctx, librarian, &Book{Title: title, Author: "A", TotalCopies: 2})
		require.NoError(t, err)
		_, err = mgr.Borrow(ctx, alice, b.ID)
		require.NoError(t, err)
		if title == "Emma" {
			_, err = mgr.Borrow(ctx, bob, b.ID)
			require.NoError(t, err)
		}
	}

	all, err := mgr.ListBorrowings(ctx, librarian, ListQuery{Sort: "book.title", Direction: Descending})
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalItems)
	assert.Equal(t, "Neuromancer", all.Items[0].Book.Title)

	bobs, err := mgr.ListBorrowings(ctx, bob, ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, bobs.TotalItems)
	assert.Equal(t, "Emma", bobs.Items[0].Book.Title)

	found, err := mgr.ListBorrowings(ctx, librarian, ListQuery{Query: "BOB@"})
	require.NoError(t, err)
	assert.Equal(t, 1, found.TotalItems)

	paged, err := mgr.ListBorrowings(ctx, alice, ListQuery{PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, paged.TotalPages)
	assert.Len(t, paged.Items, 1)
}

func TestManager_AuthenticateUser(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	id, err := mgr.AddUser(ctx, "Ada", "ada@example.com", Librarian, "s3cret")
	require.NoError(t, err)

	s, err := mgr.AuthenticateUser(ctx, id, "s3cret")
	require.NoError(t, err)
	assert.True(t, s.User.IsLibrarian())

	_, err = mgr.AuthenticateUser(ctx, id, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = mgr.AuthenticateUser(ctx, 404, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, mgr.ResetPassword(ctx, id, "n3w"))
	_, err = mgr.AuthenticateUser(ctx, id, "n3w")
	assert.NoError(t, err)
	assert.ErrorIs(t, mgr.ResetPassword(ctx, id, "  "), ErrValidation)

	_, err = mgr.AddUser(ctx, "X", "x@example.com", UserType("admin"), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManager_CheckIntegrityLogsViolations(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	mgr, _ := newManager(t, WithLogger(log))
	ctx := context.Background()
	librarian := session(t, mgr, "lib", Librarian)

	book, err := mgr.AddBook(ctx, librarian, &Book{Title: "Dune", Author: "Herbert", TotalCopies: 2})
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, librarian, book.ID)
	require.NoError(t, err)
	require.NoError(t, mgr.CheckIntegrity(ctx))

	// Corrupt the counts behind the manager's back.
	_, err = mgr.db.db.Exec(`UPDATE books SET available_copies=2 WHERE id=?`, book.ID)
	require.NoError(t, err)

	err = mgr.CheckIntegrity(ctx)
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Contains(t, buf.String(), "copy count invariant violated")
}
