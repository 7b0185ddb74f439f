package api

import (
	"net/http"

	"library-circulation/library"
)

// CreateBookRequest is the body of POST /books.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=300"`
	Author      string `json:"author" validate:"required,max=200"`
	Genre       string `json:"genre" validate:"max=100"`
	ISBN        string `json:"isbn" validate:"max=32"`
	TotalCopies int    `json:"total_copies" validate:"gte=0,lte=10000"`
	ImageURL    string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// SetCopiesRequest is the body of PATCH /books/{id}/copies.
type SetCopiesRequest struct {
	TotalCopies *int `json:"total_copies" validate:"required,gte=0,lte=10000"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseListQuery(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	page, err := s.manager.ListBooks(r.Context(), q)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	book, err := s.manager.GetBook(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	book, err := s.manager.AddBook(r.Context(), getSession(r.Context()), &library.Book{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		ISBN:        req.ISBN,
		TotalCopies: req.TotalCopies,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSetCopies(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req SetCopiesRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	book, err := s.manager.SetTotalCopies(r.Context(), getSession(r.Context()), id, *req.TotalCopies)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.manager.DeleteBook(r.Context(), getSession(r.Context()), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
