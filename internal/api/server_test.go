package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/internal/ratelimit"
	"library-circulation/internal/validation"
	"library-circulation/library"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type testServer struct {
	server    *Server
	manager   *library.LibraryManager
	clock     *time.Time
	librarian int64
	alice     int64
	bob       int64
}

func setupTestServer(t *testing.T, opts ...Options) *testServer {
	t.Helper()
	now := testNow
	clock := &now
	mgr, err := library.NewLibraryManager(filepath.Join(t.TempDir(), "api.db"),
		library.WithClock(func() time.Time { return *clock }),
		library.WithLocation(time.UTC),
		library.WithLoanPolicy(library.NewLoanPolicy(14)),
		library.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	limiter := ratelimit.New(100, 100)
	t.Cleanup(limiter.Stop)

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	ts := &testServer{
		server:  NewServer(mgr, validation.New(), limiter, slog.New(slog.NewTextHandler(io.Discard, nil)), o),
		manager: mgr,
		clock:   clock,
	}
	ctx := context.Background()
	ts.librarian, err = mgr.AddUser(ctx, "Libby", "libby@example.com", library.Librarian, "")
	require.NoError(t, err)
	ts.alice, err = mgr.AddUser(ctx, "Alice", "alice@example.com", library.Member, "")
	require.NoError(t, err)
	ts.bob, err = mgr.AddUser(ctx, "Bob", "bob@example.com", library.Member, "")
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(method, path string, userID int64, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set(SessionHeader, strconv.FormatInt(userID, 10))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
	Success bool   `json:"success"`
}

// borrowingView mirrors the flattened JSON of BorrowingResponse.
type borrowingView struct {
	ID            int64          `json:"id"`
	BookID        int64          `json:"book_id"`
	UserID        int64          `json:"user_id"`
	DueAt         time.Time      `json:"due_at"`
	ReturnedAt    *time.Time     `json:"returned_at"`
	Book          *library.Book  `json:"book"`
	User          *library.User  `json:"user"`
	Status        library.Status `json:"status"`
	DaysRemaining int            `json:"days_remaining"`
	DueLabel      string         `json:"due_label"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func (ts *testServer) createBook(t *testing.T, title string, copies int) int64 {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/books", ts.librarian, CreateBookRequest{Title: title, Author: "Author", TotalCopies: copies})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[library.Book](t, rec).Data.ID
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/health", 0, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Data.Status)
}

func TestSession_Required(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/books", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode[any](t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/v1/books", 999, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req.Header.Set(SessionHeader, "abc")
	bad := httptest.NewRecorder()
	ts.server.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestBorrowAndReturn(t *testing.T) {
	ts := setupTestServer(t)
	bookID := ts.createBook(t, "Dune", 1)

	rec := ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, BorrowRequest{BookID: bookID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	borrowed := decode[borrowingView](t, rec).Data
	assert.Equal(t, library.StatusActive, borrowed.Status)
	assert.Equal(t, 14, borrowed.DaysRemaining)
	assert.Equal(t, "14 days remaining", borrowed.DueLabel)
	assert.True(t, borrowed.DueAt.Equal(testNow.Add(14*24*time.Hour)))

	rec = ts.do(http.MethodPost, "/api/v1/borrowings", ts.bob, BorrowRequest{BookID: bookID})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "UNAVAILABLE", decode[any](t, rec).Code)

	path := "/api/v1/borrowings/" + strconv.FormatInt(borrowed.ID, 10) + "/return"
	rec = ts.do(http.MethodPatch, path, ts.bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPatch, path, ts.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, library.StatusReturned, decode[borrowingView](t, rec).Data.Status)

	rec = ts.do(http.MethodPatch, path, ts.alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_RETURNED", decode[any](t, rec).Code)

	rec = ts.do(http.MethodPatch, "/api/v1/borrowings/999/return", ts.librarian, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBorrow_ValidationDetails(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, map[string]any{"book_id": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[any](t, rec)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Equal(t, map[string]any{"book_id": "is required"}, env.Details)

	rec = ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, map[string]any{"book": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBorrow_RateLimited(t *testing.T) {
	ts := setupTestServer(t)
	ts.server.limiter = ratelimit.New(0.001, 1)
	t.Cleanup(ts.server.limiter.Stop)
	bookID := ts.createBook(t, "Dune", 5)

	first := ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, BorrowRequest{BookID: bookID})
	require.Equal(t, http.StatusCreated, first.Code)

	second := ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, BorrowRequest{BookID: bookID})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := ts.do(http.MethodPost, "/api/v1/borrowings", ts.bob, BorrowRequest{BookID: bookID})
	assert.Equal(t, http.StatusCreated, other.Code)
}

func TestListBorrowings_ScopedAndSorted(t *testing.T) {
	ts := setupTestServer(t)
	dune := ts.createBook(t, "Dune", 2)
	emma := ts.createBook(t, "Emma", 2)

	for _, req := range []struct {
		user int64
		book int64
	}{{ts.alice, dune}, {ts.alice, emma}, {ts.bob, emma}} {
		rec := ts.do(http.MethodPost, "/api/v1/borrowings", req.user, BorrowRequest{BookID: req.book})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(http.MethodGet, "/api/v1/borrowings?sort=book.title&dir=desc", ts.librarian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[library.Page[borrowingView]](t, rec).Data
	assert.Equal(t, 3, all.TotalItems)
	assert.Equal(t, "Emma", all.Items[0].Book.Title)
	assert.Equal(t, "Dune", all.Items[2].Book.Title)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings?q=dune", ts.bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[library.Page[borrowingView]](t, rec).Data.TotalItems)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings?page_size=1&page=2", ts.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[library.Page[borrowingView]](t, rec).Data
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings?page=x", ts.alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/borrowings?dir=sideways", ts.alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverdueAndDashboards(t *testing.T) {
	ts := setupTestServer(t)
	dune := ts.createBook(t, "Dune", 2)

	rec := ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, BorrowRequest{BookID: dune})
	require.Equal(t, http.StatusCreated, rec.Code)
	*ts.clock = testNow.Add(15 * 24 * time.Hour)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings/overdue", ts.alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings/overdue", ts.librarian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overdue := decode[[]borrowingView](t, rec).Data
	require.Len(t, overdue, 1)
	assert.Equal(t, library.StatusOverdue, overdue[0].Status)
	assert.Equal(t, "1 day overdue", overdue[0].DueLabel)

	rec = ts.do(http.MethodGet, "/api/v1/borrowings/my_overdue", ts.bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]borrowingView](t, rec).Data)

	rec = ts.do(http.MethodGet, "/api/v1/dashboard/librarian", ts.librarian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, library.DashboardStats{TotalBooks: 1, TotalCopies: 2, TotalBorrowed: 1, OverdueCount: 1},
		decode[library.DashboardStats](t, rec).Data)

	rec = ts.do(http.MethodGet, "/api/v1/dashboard/librarian", ts.alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/dashboard/member", ts.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, library.DashboardStats{TotalBooks: 1, TotalCopies: 2, MyBorrowed: 1, OverdueCount: 1},
		decode[library.DashboardStats](t, rec).Data)
}

func TestBooks_CatalogManagement(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/books", ts.alice, CreateBookRequest{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/books", ts.librarian, map[string]any{"author": "Herbert", "total_copies": -1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode[any](t, rec).Details.(map[string]any)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "total_copies")

	dune := ts.createBook(t, "Dune", 1)
	ts.createBook(t, "Emma", 3)

	rec = ts.do(http.MethodGet, "/api/v1/books?q=DUN", ts.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[library.Page[library.Book]](t, rec).Data
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, "Dune", page.Items[0].Title)

	rec = ts.do(http.MethodGet, "/api/v1/books?sort=total_copies&dir=desc", ts.alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Emma", decode[library.Page[library.Book]](t, rec).Data.Items[0].Title)

	rec = ts.do(http.MethodPost, "/api/v1/borrowings", ts.alice, BorrowRequest{BookID: dune})
	require.Equal(t, http.StatusCreated, rec.Code)
	borrowingID := decode[borrowingView](t, rec).Data.ID

	bookPath := "/api/v1/books/" + strconv.FormatInt(dune, 10)
	rec = ts.do(http.MethodDelete, bookPath, ts.librarian, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[any](t, rec).Code)

	rec = ts.do(http.MethodPatch, bookPath+"/copies", ts.librarian, map[string]any{"total_copies": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(http.MethodPatch, bookPath+"/copies", ts.librarian, map[string]any{"total_copies": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[library.Book](t, rec).Data.AvailableCopies)

	rec = ts.do(http.MethodPatch, "/api/v1/borrowings/"+strconv.FormatInt(borrowingID, 10)+"/return", ts.librarian, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodDelete, bookPath, ts.librarian, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, bookPath, ts.alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/books/nope", ts.alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t, Options{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/borrowings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", SessionHeader)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
