package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"library-circulation/library"
)

func parseID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, library.Validationf("invalid %s %q", param, raw)
	}
	return id, nil
}

// listParams are the query parameters shared by every listing endpoint.
type listParams struct {
	Query    string `json:"q" validate:"max=200"`
	Sort     string `json:"sort" validate:"max=64"`
	Dir      string `json:"dir" validate:"omitempty,oneof=asc desc ASC DESC"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=100"`
}

func (s *Server) parseListQuery(r *http.Request) (library.ListQuery, error) {
	q := r.URL.Query()
	p := listParams{
		Query: q.Get("q"),
		Sort:  strings.TrimSpace(q.Get("sort")),
		Dir:   q.Get("dir"),
	}
	var err error
	if p.Page, err = queryInt(q.Get("page")); err != nil {
		return library.ListQuery{}, library.Validationf("invalid page %q", q.Get("page"))
	}
	if p.PageSize, err = queryInt(q.Get("page_size")); err != nil {
		return library.ListQuery{}, library.Validationf("invalid page_size %q", q.Get("page_size"))
	}
	if err := s.validator.Validate(p); err != nil {
		return library.ListQuery{}, err
	}

	return library.ListQuery{
		Query:     p.Query,
		Sort:      p.Sort,
		Direction: library.ParseDirection(p.Dir),
		Page:      p.Page,
		PageSize:  p.PageSize,
	}, nil
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
