package library

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// LibraryManager is a thin façade over the Database that adds the caller's session,
// the clock and the loan policy. CLI and HTTP code go through it.
type LibraryManager struct {
	db     *Database
	policy LoanPolicy
	loc    *time.Location
	clock  func() time.Time
	log    *slog.Logger
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

// WithLoanPolicy sets the loan period used for new borrowings.
func WithLoanPolicy(p LoanPolicy) Option {
	return func(m *LibraryManager) { m.policy = p }
}

// WithLocation sets the time zone used for calendar-day rules such as "due today".
func WithLocation(loc *time.Location) Option {
	return func(m *LibraryManager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(m *LibraryManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *LibraryManager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	m := &LibraryManager{
		db:     db,
		policy: NewLoanPolicy(0),
		loc:    time.Local,
		clock:  time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Ping checks the database connection.
func (lm *LibraryManager) Ping(ctx context.Context) error { return lm.db.Ping(ctx) }

// Now returns the current time in the configured location.
func (lm *LibraryManager) Now() time.Time { return lm.clock().In(lm.loc) }

// Policy returns the loan policy in force.
func (lm *LibraryManager) Policy() LoanPolicy { return lm.policy }

// ------------------ Sessions ------------------

// SessionFor loads the user behind an identity already verified elsewhere.
func (lm *LibraryManager) SessionFor(ctx context.Context, userID int64) (*Session, error) {
	user, err := lm.db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user}, nil
}

// AuthenticateUser checks a password against the stored bcrypt hash and opens a session.
func (lm *LibraryManager) AuthenticateUser(ctx context.Context, userID int64, password string) (*Session, error) {
	user, err := lm.db.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, &Error{Kind: KindInvalidCredentials, Message: "no password set for this user"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Session{User: user}, nil
}

func requireUser(s *Session) error {
	if s == nil || s.User == nil {
		return Forbiddenf("no authenticated user")
	}
	return nil
}

func requireLibrarian(s *Session) error {
	if err := requireUser(s); err != nil {
		return err
	}
	if !s.User.IsLibrarian() {
		return Forbiddenf("librarian access required")
	}
	return nil
}

// ------------------ User helpers ------------------

// AddUser creates a user. An empty password leaves the account without a local login.
func (lm *LibraryManager) AddUser(ctx context.Context, name, email string, userType UserType, password string) (int64, error) {
	if !userType.Valid() {
		return 0, Validationf("unknown user type %q", userType)
	}
	var hash string
	if password != "" {
		h, err := hashPassword(password)
		if err != nil {
			return 0, err
		}
		hash = h
	}
	id, err := lm.db.AddUser(ctx, strings.TrimSpace(name), strings.TrimSpace(email), userType, hash)
	if err != nil {
		return 0, err
	}
	lm.log.Info("user added", "user_id", id, "user_type", userType)
	return id, nil
}

func (lm *LibraryManager) GetUser(ctx context.Context, id int64) (*User, error) {
	return lm.db.GetUser(ctx, id)
}

func (lm *LibraryManager) GetAllUsers(ctx context.Context) ([]*User, error) {
	return lm.db.GetAllUsers(ctx)
}

// ResetPassword replaces a user's password.
func (lm *LibraryManager) ResetPassword(ctx context.Context, id int64, password string) error {
	if strings.TrimSpace(password) == "" {
		return Validationf("password cannot be empty")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return lm.db.SetPasswordHash(ctx, id, hash)
}

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", Wrap(err, KindInternal, "hash password")
	}
	return string(h), nil
}

// ------------------ Book helpers ------------------

// AddBook adds a title to the catalog with all copies on the shelf.
func (lm *LibraryManager) AddBook(ctx context.Context, s *Session, b *Book) (*Book, error) {
	if err := requireLibrarian(s); err != nil {
		return nil, err
	}
	if _, err := lm.db.AddBook(ctx, b, lm.Now()); err != nil {
		return nil, err
	}
	lm.log.Info("book added", "book_id", b.ID, "title", b.Title, "copies", b.TotalCopies)
	return b, nil
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) GetAllBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.GetAllBooks(ctx)
}

// ListQuery selects one page of a searched and sorted listing.
type ListQuery struct {
	Query     string
	Sort      string
	Direction Direction
	Page      int
	PageSize  int
}

// ListBooks searches the catalog by title, author and genre.
func (lm *LibraryManager) ListBooks(ctx context.Context, q ListQuery) (Page[*Book], error) {
	books, err := lm.db.GetAllBooks(ctx)
	if err != nil {
		return Page[*Book]{}, err
	}
	books = Sort(Search(books, q.Query, BookSearchFields), q.Sort, q.Direction)
	return Paginate(books, q.PageSize, q.Page), nil
}

// DeleteBook removes a book from the catalog. It fails with CONFLICT while copies are on loan.
func (lm *LibraryManager) DeleteBook(ctx context.Context, s *Session, id int64) error {
	if err := requireLibrarian(s); err != nil {
		return err
	}
	if err := lm.db.DeleteBook(ctx, id, lm.Now()); err != nil {
		return err
	}
	lm.log.Info("book deleted", "book_id", id, "by", s.User.ID)
	return nil
}

// SetTotalCopies changes the number of copies owned of a book.
func (lm *LibraryManager) SetTotalCopies(ctx context.Context, s *Session, id int64, total int) (*Book, error) {
	if err := requireLibrarian(s); err != nil {
		return nil, err
	}
	book, err := lm.db.SetTotalCopies(ctx, id, total, lm.Now())
	if err != nil {
		return nil, lm.observe(err, "set total copies", "book_id", id)
	}
	lm.log.Info("copies changed", "book_id", id, "total", book.TotalCopies, "available", book.AvailableCopies)
	return book, nil
}

// ------------------ Circulation ------------------

// Borrow lends a copy of bookID to the session user.
func (lm *LibraryManager) Borrow(ctx context.Context, s *Session, bookID int64) (*Borrowing, error) {
	if err := requireUser(s); err != nil {
		return nil, err
	}
	borrowing, book, err := lm.db.Borrow(ctx, bookID, s.User.ID, lm.Now(), lm.policy)
	if err != nil {
		return nil, lm.observe(err, "borrow", "book_id", bookID, "user_id", s.User.ID)
	}
	lm.log.Info("book borrowed",
		"borrowing_id", borrowing.ID,
		"book_id", book.ID,
		"user_id", s.User.ID,
		"due_at", borrowing.DueAt,
		"available", book.AvailableCopies)
	return borrowing, nil
}

// Return closes a borrowing. Members may only return their own loans.
func (lm *LibraryManager) Return(ctx context.Context, s *Session, borrowingID int64) (*Borrowing, error) {
	if err := requireUser(s); err != nil {
		return nil, err
	}
	authorize := func(b *Borrowing) error {
		if !s.User.IsLibrarian() && b.UserID != s.User.ID {
			return Forbiddenf("borrowing %d belongs to another user", b.ID)
		}
		return nil
	}
	borrowing, book, err := lm.db.Return(ctx, borrowingID, lm.Now(), authorize)
	if err != nil {
		return nil, lm.observe(err, "return", "borrowing_id", borrowingID, "user_id", s.User.ID)
	}
	lm.log.Info("book returned",
		"borrowing_id", borrowing.ID,
		"book_id", book.ID,
		"user_id", borrowing.UserID,
		"late", borrowing.DueAt.Before(*borrowing.ReturnedAt),
		"available", book.AvailableCopies)
	return borrowing, nil
}

// ListBorrowings returns librarians every borrowing and members their own, searched by
// book title, author, user name and email.
func (lm *LibraryManager) ListBorrowings(ctx context.Context, s *Session, q ListQuery) (Page[*BorrowingDetail], error) {
	items, err := lm.visibleBorrowings(ctx, s)
	if err != nil {
		return Page[*BorrowingDetail]{}, err
	}
	items = Sort(Search(items, q.Query, BorrowingSearchFields), q.Sort, q.Direction)
	return Paginate(items, q.PageSize, q.Page), nil
}

// Overdue lists every overdue borrowing. Librarians only.
func (lm *LibraryManager) Overdue(ctx context.Context, s *Session) ([]*BorrowingDetail, error) {
	if err := requireLibrarian(s); err != nil {
		return nil, err
	}
	active, err := lm.db.ListBorrowings(ctx, BorrowingFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return FilterOverdue(active, lm.Now()), nil
}

// MyOverdue lists the session user's overdue borrowings.
func (lm *LibraryManager) MyOverdue(ctx context.Context, s *Session) ([]*BorrowingDetail, error) {
	if err := requireUser(s); err != nil {
		return nil, err
	}
	active, err := lm.db.ListBorrowings(ctx, BorrowingFilter{UserID: s.User.ID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return FilterOverdue(active, lm.Now()), nil
}

func (lm *LibraryManager) visibleBorrowings(ctx context.Context, s *Session) ([]*BorrowingDetail, error) {
	if err := requireUser(s); err != nil {
		return nil, err
	}
	var f BorrowingFilter
	if !s.User.IsLibrarian() {
		f.UserID = s.User.ID
	}
	return lm.db.ListBorrowings(ctx, f)
}

// ------------------ Dashboards ------------------

// LibrarianDashboard summarizes the catalog and all loans. Librarians only.
func (lm *LibraryManager) LibrarianDashboard(ctx context.Context, s *Session) (DashboardStats, error) {
	if err := requireLibrarian(s); err != nil {
		return DashboardStats{}, err
	}
	books, loans, err := lm.dashboardInputs(ctx, BorrowingFilter{})
	if err != nil {
		return DashboardStats{}, err
	}
	return LibrarianDashboard(books, loans, lm.Now()), nil
}

// MemberDashboard summarizes the catalog and the session user's loans.
func (lm *LibraryManager) MemberDashboard(ctx context.Context, s *Session) (DashboardStats, error) {
	if err := requireUser(s); err != nil {
		return DashboardStats{}, err
	}
	books, loans, err := lm.dashboardInputs(ctx, BorrowingFilter{UserID: s.User.ID})
	if err != nil {
		return DashboardStats{}, err
	}
	return MemberDashboard(books, loans, s.User.ID, lm.Now()), nil
}

// Dashboard picks the dashboard matching the session user's role.
func (lm *LibraryManager) Dashboard(ctx context.Context, s *Session) (DashboardStats, error) {
	if s != nil && s.User.IsLibrarian() {
		return lm.LibrarianDashboard(ctx, s)
	}
	return lm.MemberDashboard(ctx, s)
}

func (lm *LibraryManager) dashboardInputs(ctx context.Context, f BorrowingFilter) ([]*Book, []*Borrowing, error) {
	books, err := lm.db.GetAllBooks(ctx)
	if err != nil {
		return nil, nil, err
	}
	details, err := lm.db.ListBorrowings(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	loans := make([]*Borrowing, 0, len(details))
	for _, d := range details {
		loans = append(loans, &d.Borrowing)
	}
	return books, loans, nil
}

// ------------------ Integrity ------------------

// CheckIntegrity verifies that every book's copy counts are in range and match its
// active borrowings. Violations are logged and returned joined; nothing is repaired.
func (lm *LibraryManager) CheckIntegrity(ctx context.Context) error {
	books, err := lm.db.GetAllBooks(ctx)
	if err != nil {
		return err
	}
	active, err := lm.db.ListBorrowings(ctx, BorrowingFilter{ActiveOnly: true})
	if err != nil {
		return err
	}
	perBook := make(map[int64]int, len(books))
	for _, d := range active {
		perBook[d.BookID]++
	}

	var errs []error
	for _, b := range books {
		if err := CheckLoanCount(b, perBook[b.ID]); err != nil {
			errs = append(errs, lm.observe(err, "integrity check", "book_id", b.ID))
		}
	}
	return errors.Join(errs...)
}

// observe logs invariant violations at error level and passes err through.
func (lm *LibraryManager) observe(err error, op string, attrs ...any) error {
	if errors.Is(err, ErrInvariantViolation) {
		lm.log.Error("copy count invariant violated", append([]any{"op", op, "error", err}, attrs...)...)
	} else {
		lm.log.Debug(op+" rejected", append([]any{"error", err}, attrs...)...)
	}
	return err
}
