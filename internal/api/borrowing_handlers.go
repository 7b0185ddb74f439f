package api

import (
	"net/http"
	"time"

	"library-circulation/library"
)

// BorrowingResponse is a borrowing with its status derived at request time.
type BorrowingResponse struct {
	*library.BorrowingDetail
	Status        library.Status `json:"status"`
	DaysRemaining int            `json:"days_remaining"`
	DueLabel      string         `json:"due_label"`
}

func newBorrowingResponse(d *library.BorrowingDetail, now time.Time) BorrowingResponse {
	return BorrowingResponse{
		BorrowingDetail: d,
		Status:          library.Classify(&d.Borrowing, now),
		DaysRemaining:   library.DaysRemaining(&d.Borrowing, now),
		DueLabel:        library.DueLabel(&d.Borrowing, now),
	}
}

func newBorrowingResponses(details []*library.BorrowingDetail, now time.Time) []BorrowingResponse {
	out := make([]BorrowingResponse, 0, len(details))
	for _, d := range details {
		out = append(out, newBorrowingResponse(d, now))
	}
	return out
}

// BorrowRequest is the body of POST /borrowings.
type BorrowRequest struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	b, err := s.manager.Borrow(r.Context(), getSession(r.Context()), req.BookID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newBorrowingResponse(&library.BorrowingDetail{Borrowing: *b}, s.manager.Now()))
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	b, err := s.manager.Return(r.Context(), getSession(r.Context()), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBorrowingResponse(&library.BorrowingDetail{Borrowing: *b}, s.manager.Now()))
}

func (s *Server) handleListBorrowings(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseListQuery(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	page, err := s.manager.ListBorrowings(r.Context(), getSession(r.Context()), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, library.Page[BorrowingResponse]{
		Items:      newBorrowingResponses(page.Items, s.manager.Now()),
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		TotalItems: page.TotalItems,
	})
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := s.manager.Overdue(r.Context(), getSession(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBorrowingResponses(items, s.manager.Now()))
}

func (s *Server) handleMyOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := s.manager.MyOverdue(r.Context(), getSession(r.Context()))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newBorrowingResponses(items, s.manager.Now()))
}
