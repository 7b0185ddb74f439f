package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sqlx.DB

	addBookStmt *sqlx.Stmt
	addUserStmt *sqlx.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// busy_timeout and foreign keys; IMMEDIATE transactions take the write lock on BEGIN
	// so two borrowers of the last copy are serialized instead of both reading it.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addUserStmt != nil {
		d.addUserStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 4

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        user_type TEXT NOT NULL CHECK (user_type IN ('librarian','member')),
        password_hash TEXT NOT NULL DEFAULT ''
    );`,
	`CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        author TEXT NOT NULL,
        genre TEXT NOT NULL DEFAULT '',
        isbn TEXT NOT NULL DEFAULT '',
        total_copies INTEGER NOT NULL CHECK (total_copies >= 0),
        available_copies INTEGER NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
        image_url TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL,
        deleted_at TEXT
    );`,
	`CREATE TABLE IF NOT EXISTS borrowings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        book_id INTEGER NOT NULL REFERENCES books(id),
        user_id INTEGER NOT NULL REFERENCES users(id),
        borrowed_at TEXT NOT NULL,
        due_at TEXT NOT NULL,
        returned_at TEXT
    );`,
	// One active loan per user and book.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrowings_active
        ON borrowings(book_id, user_id) WHERE returned_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_borrowings_user ON borrowings(user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_borrowings_due ON borrowings(due_at) WHERE returned_at IS NULL;`,
}

// schemaUpgrades alters tables created by an older schema, keyed by the version
// that introduced the change. Fresh databases get these from schemaStatements.
var schemaUpgrades = map[int][]string{
	// Deleted books stay so their borrowings keep a book to point at.
	4: {`ALTER TABLE books ADD COLUMN deleted_at TEXT;`},
}

func applyMigrations(db *sqlx.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.Get(&current, `SELECT value FROM meta WHERE key='schema_version';`)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if current > 0 {
		for v := current + 1; v <= schemaVersion; v++ {
			for _, stmt := range schemaUpgrades[v] {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("upgrade schema to %d: %w", v, err)
				}
			}
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Preparex(`INSERT INTO books(title,author,genre,isbn,total_copies,available_copies,image_url,created_at,updated_at)
        VALUES(?,?,?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addUserStmt, err = d.db.Preparex(`INSERT INTO users(name,email,user_type,password_hash) VALUES(?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

type userRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	Type         string `db:"user_type"`
	PasswordHash string `db:"password_hash"`
}

func (r userRow) toUser() *User {
	return &User{ID: r.ID, Name: r.Name, Email: r.Email, Type: UserType(r.Type), PasswordHash: r.PasswordHash}
}

type bookRow struct {
	ID              int64  `db:"id"`
	Title           string `db:"title"`
	Author          string `db:"author"`
	Genre           string `db:"genre"`
	ISBN            string `db:"isbn"`
	TotalCopies     int    `db:"total_copies"`
	AvailableCopies int    `db:"available_copies"`
	ImageURL        string `db:"image_url"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`
}

func (r bookRow) toBook() (*Book, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("book %d created_at: %w", r.ID, err)
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("book %d updated_at: %w", r.ID, err)
	}
	return &Book{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		Genre:           r.Genre,
		ISBN:            r.ISBN,
		TotalCopies:     r.TotalCopies,
		AvailableCopies: r.AvailableCopies,
		ImageURL:        r.ImageURL,
		CreatedAt:       created,
		UpdatedAt:       updated,
	}, nil
}

type borrowingRow struct {
	ID         int64          `db:"id"`
	BookID     int64          `db:"book_id"`
	UserID     int64          `db:"user_id"`
	BorrowedAt string         `db:"borrowed_at"`
	DueAt      string         `db:"due_at"`
	ReturnedAt sql.NullString `db:"returned_at"`
}

func (r borrowingRow) toBorrowing() (*Borrowing, error) {
	borrowed, err := parseTime(r.BorrowedAt)
	if err != nil {
		return nil, fmt.Errorf("borrowing %d borrowed_at: %w", r.ID, err)
	}
	due, err := parseTime(r.DueAt)
	if err != nil {
		return nil, fmt.Errorf("borrowing %d due_at: %w", r.ID, err)
	}
	returned, err := parseNullableTime(r.ReturnedAt)
	if err != nil {
		return nil, fmt.Errorf("borrowing %d returned_at: %w", r.ID, err)
	}
	return &Borrowing{ID: r.ID, BookID: r.BookID, UserID: r.UserID, BorrowedAt: borrowed, DueAt: due, ReturnedAt: returned}, nil
}

type borrowingDetailRow struct {
	borrowingRow
	BookTitle  string `db:"book_title"`
	BookAuthor string `db:"book_author"`
	BookGenre  string `db:"book_genre"`
	BookISBN   string `db:"book_isbn"`
	UserName   string `db:"user_name"`
	UserEmail  string `db:"user_email"`
	UserType   string `db:"user_type"`
}

func (r borrowingDetailRow) toDetail() (*BorrowingDetail, error) {
	b, err := r.toBorrowing()
	if err != nil {
		return nil, err
	}
	return &BorrowingDetail{
		Borrowing: *b,
		Book:      &Book{ID: r.BookID, Title: r.BookTitle, Author: r.BookAuthor, Genre: r.BookGenre, ISBN: r.BookISBN},
		User:      &User{ID: r.UserID, Name: r.UserName, Email: r.UserEmail, Type: UserType(r.UserType)},
	}, nil
}

// formatTime formats a time for storage; all stored times are UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTimeString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// AddUser inserts a user. passwordHash may be empty for accounts that never log in locally.
func (d *Database) AddUser(ctx context.Context, name, email string, userType UserType, passwordHash string) (int64, error) {
	res, err := d.addUserStmt.ExecContext(ctx, name, email, string(userType), passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, Conflictf("a user with email %q already exists", email)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetUser fetches a single user.
func (d *Database) GetUser(ctx context.Context, id int64) (*User, error) {
	return getUser(ctx, d.db, id)
}

func getUser(ctx context.Context, q sqlx.QueryerContext, id int64) (*User, error) {
	var r userRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT id,name,email,user_type,password_hash FROM users WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundf("user %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return r.toUser(), nil
}

// GetAllUsers returns all users.
func (d *Database) GetAllUsers(ctx context.Context) ([]*User, error) {
	var rows []userRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT id,name,email,user_type,password_hash FROM users ORDER BY id`); err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// SetPasswordHash replaces a user's stored password hash.
func (d *Database) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, NotFoundf("user %d does not exist", id))
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// AddBook inserts a book with every copy on the shelf and returns its ID.
func (d *Database) AddBook(ctx context.Context, b *Book, now time.Time) (int64, error) {
	b.AvailableCopies = b.TotalCopies
	if err := CheckInvariant(b); err != nil {
		return 0, err
	}
	ts := formatTime(now)
	res, err := d.addBookStmt.ExecContext(ctx, b.Title, b.Author, b.Genre, b.ISBN, b.TotalCopies, b.AvailableCopies, b.ImageURL, ts, ts)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	b.ID, b.CreatedAt, b.UpdatedAt = id, now, now
	return id, nil
}

const bookColumns = `id,title,author,genre,isbn,total_copies,available_copies,image_url,created_at,updated_at`

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBook(ctx, d.db, id)
}

func getBook(ctx context.Context, q sqlx.QueryerContext, id int64) (*Book, error) {
	var r bookRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+bookColumns+` FROM books WHERE id=? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundf("book %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return r.toBook()
}

// GetAllBooks returns the whole catalog ordered by ID.
func (d *Database) GetAllBooks(ctx context.Context) ([]*Book, error) {
	var rows []bookRow
	if err := d.db.SelectContext(ctx, &rows, `SELECT `+bookColumns+` FROM books WHERE deleted_at IS NULL ORDER BY id`); err != nil {
		return nil, err
	}
	books := make([]*Book, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBook()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// DeleteBook removes a book that has never been borrowed or whose loans are all returned.
// The row is only marked deleted so past borrowings still resolve their book.
func (d *Database) DeleteBook(ctx context.Context, id int64, now time.Time) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, id)
	if err != nil {
		return err
	}
	active, err := listBorrowings(ctx, tx, BorrowingFilter{BookID: id, ActiveOnly: true})
	if err != nil {
		return err
	}
	loans := make([]*Borrowing, 0, len(active))
	for _, d := range active {
		loans = append(loans, &d.Borrowing)
	}
	if !CanDelete(book, loans) {
		return Conflictf("book %d has %d active borrowings", id, len(active))
	}

	ts := formatTime(now)
	res, err := tx.ExecContext(ctx, `UPDATE books SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`, ts, ts, id)
	if err != nil {
		return err
	}
	if err := expectOneRow(res, NotFoundf("book %d does not exist", id)); err != nil {
		return err
	}
	return tx.Commit()
}

// SetTotalCopies changes how many copies a book has. The copies on loan stay on loan,
// so the total cannot drop below them.
func (d *Database) SetTotalCopies(ctx context.Context, id int64, total int, now time.Time) (*Book, error) {
	if total < 0 {
		return nil, Validationf("total copies must not be negative")
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	onLoan := book.OnLoan()
	if total < onLoan {
		return nil, Conflictf("book %d has %d copies on loan; total cannot be %d", id, onLoan, total)
	}
	prevAvailable := book.AvailableCopies
	book.TotalCopies = total
	book.AvailableCopies = total - onLoan
	book.UpdatedAt = now

	if err := updateBookCounts(ctx, tx, book, prevAvailable); err != nil {
		return nil, err
	}
	return book, tx.Commit()
}

// updateBookCounts writes book's copy counts if the stored available count still equals
// prevAvailable. A lost race surfaces as CONFLICT; the caller's transaction is not retried.
func updateBookCounts(ctx context.Context, tx *sqlx.Tx, book *Book, prevAvailable int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE books SET total_copies=?, available_copies=?, updated_at=? WHERE id=? AND available_copies=?`,
		book.TotalCopies, book.AvailableCopies, formatTime(book.UpdatedAt), book.ID, prevAvailable)
	if err != nil {
		return err
	}
	return expectOneRow(res, Conflictf("book %d was modified concurrently", book.ID))
}

func expectOneRow(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return otherwise
	}
	return nil
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// Borrow lends a copy of bookID to userID. The new borrowing and the decremented
// copy count are written in one transaction.
func (d *Database) Borrow(ctx context.Context, bookID, userID int64, now time.Time, policy LoanPolicy) (*Borrowing, *Book, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, bookID)
	if err != nil {
		return nil, nil, err
	}
	user, err := getUser(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := activeBorrowing(ctx, tx, bookID, userID)
	if err != nil {
		return nil, nil, err
	}

	prevAvailable := book.AvailableCopies
	borrowing, err := Borrow(book, user, existing, now, policy)
	if err != nil {
		return nil, nil, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO borrowings(book_id,user_id,borrowed_at,due_at) VALUES(?,?,?,?)`,
		borrowing.BookID, borrowing.UserID, formatTime(borrowing.BorrowedAt), formatTime(borrowing.DueAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, Unavailablef("user %d already has %q on loan", userID, book.Title)
		}
		return nil, nil, err
	}
	if borrowing.ID, err = res.LastInsertId(); err != nil {
		return nil, nil, err
	}
	if err := updateBookCounts(ctx, tx, book, prevAvailable); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return borrowing, book, nil
}

// Return marks borrowingID returned and puts the copy back on the shelf in one transaction.
// authorize, when non-nil, runs against the stored borrowing before anything changes.
func (d *Database) Return(ctx context.Context, borrowingID int64, now time.Time, authorize func(*Borrowing) error) (*Borrowing, *Book, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	borrowing, err := getBorrowing(ctx, tx, borrowingID)
	if err != nil {
		return nil, nil, err
	}
	if authorize != nil {
		if err := authorize(borrowing); err != nil {
			return nil, nil, err
		}
	}
	book, err := getBook(ctx, tx, borrowing.BookID)
	if err != nil {
		return nil, nil, err
	}

	prevAvailable := book.AvailableCopies
	if err := Return(borrowing, book, now); err != nil {
		return nil, nil, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE borrowings SET returned_at=? WHERE id=? AND returned_at IS NULL`,
		nullTimeString(borrowing.ReturnedAt), borrowing.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := expectOneRow(res, AlreadyReturnedf("borrowing %d was already returned", borrowing.ID)); err != nil {
		return nil, nil, err
	}
	if err := updateBookCounts(ctx, tx, book, prevAvailable); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return borrowing, book, nil
}

const borrowingColumns = `id,book_id,user_id,borrowed_at,due_at,returned_at`

// GetBorrowing fetches a single borrowing.
func (d *Database) GetBorrowing(ctx context.Context, id int64) (*Borrowing, error) {
	return getBorrowing(ctx, d.db, id)
}

func getBorrowing(ctx context.Context, q sqlx.QueryerContext, id int64) (*Borrowing, error) {
	var r borrowingRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+borrowingColumns+` FROM borrowings WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundf("borrowing %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return r.toBorrowing()
}

// activeBorrowing returns the user's unreturned borrowing of bookID, or nil.
func activeBorrowing(ctx context.Context, q sqlx.QueryerContext, bookID, userID int64) (*Borrowing, error) {
	var r borrowingRow
	err := sqlx.GetContext(ctx, q, &r,
		`SELECT `+borrowingColumns+` FROM borrowings WHERE book_id=? AND user_id=? AND returned_at IS NULL`, bookID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.toBorrowing()
}

// BorrowingFilter narrows ListBorrowings. Zero values mean "any".
type BorrowingFilter struct {
	UserID     int64
	BookID     int64
	ActiveOnly bool
}

// ListBorrowings returns borrowings joined with their book and user, oldest first.
func (d *Database) ListBorrowings(ctx context.Context, f BorrowingFilter) ([]*BorrowingDetail, error) {
	return listBorrowings(ctx, d.db, f)
}

func listBorrowings(ctx context.Context, q sqlx.QueryerContext, f BorrowingFilter) ([]*BorrowingDetail, error) {
	ds := goqu.Dialect("sqlite3").
		From(goqu.T("borrowings").As("br")).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("bk.id").Eq(goqu.I("br.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("br.user_id")))).
		Select(
			goqu.I("br.id").As("id"),
			goqu.I("br.book_id").As("book_id"),
			goqu.I("br.user_id").As("user_id"),
			goqu.I("br.borrowed_at").As("borrowed_at"),
			goqu.I("br.due_at").As("due_at"),
			goqu.I("br.returned_at").As("returned_at"),
			goqu.I("bk.title").As("book_title"),
			goqu.I("bk.author").As("book_author"),
			goqu.I("bk.genre").As("book_genre"),
			goqu.I("bk.isbn").As("book_isbn"),
			goqu.I("u.name").As("user_name"),
			goqu.I("u.email").As("user_email"),
			goqu.I("u.user_type").As("user_type"),
		).
		Order(goqu.I("br.id").Asc()).
		Prepared(true)

	if f.UserID != 0 {
		ds = ds.Where(goqu.I("br.user_id").Eq(f.UserID))
	}
	if f.BookID != 0 {
		ds = ds.Where(goqu.I("br.book_id").Eq(f.BookID))
	}
	if f.ActiveOnly {
		ds = ds.Where(goqu.I("br.returned_at").IsNull())
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrowing query: %w", err)
	}

	var rows []borrowingDetailRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*BorrowingDetail, 0, len(rows))
	for _, r := range rows {
		detail, err := r.toDetail()
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, nil
}
