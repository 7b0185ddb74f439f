package library

import "time"

// UserType is the role a user acts in.
type UserType string

const (
	// Librarian manages the catalog and may see and return every borrowing.
	Librarian UserType = "librarian"
	// Member borrows and returns only their own books.
	Member UserType = "member"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == Librarian || t == Member
}

// Book represents a catalog entry and the number of copies currently on the shelf.
// AvailableCopies must stay within [0, TotalCopies].
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	ISBN            string    `json:"isbn"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OnLoan is the number of copies currently borrowed.
func (b *Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// User is a library account. Identity and tokens are owned by an external service;
// PasswordHash only backs the operator login of the command line tool.
type User struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Type         UserType `json:"user_type"`
	PasswordHash string   `json:"-"` // Don't serialize password hash
}

// IsLibrarian reports whether the user may manage the catalog.
func (u *User) IsLibrarian() bool {
	return u != nil && u.Type == Librarian
}

// Borrowing is a single loan of one copy of a book to one user.
// A nil ReturnedAt means the loan is still active.
type Borrowing struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	UserID     int64      `json:"user_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// IsActive reports whether the loan has not been returned yet.
func (b *Borrowing) IsActive() bool {
	return b != nil && b.ReturnedAt == nil
}

// BorrowingDetail is a borrowing joined with the book and user it references.
type BorrowingDetail struct {
	Borrowing
	Book *Book `json:"book,omitempty"`
	User *User `json:"user,omitempty"`
}

// Status is the derived state of a borrowing. It is never stored.
type Status string

const (
	StatusActive   Status = "active"
	StatusOverdue  Status = "overdue"
	StatusReturned Status = "returned"
)

// Session is the authenticated caller of an operation, resolved by the transport layer.
type Session struct {
	User *User
}
