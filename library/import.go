package library

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ImportRowError reports a catalog row that could not be imported.
type ImportRowError struct {
	Line int
	Err  error
}

func (e ImportRowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// ImportResult summarizes a catalog import.
type ImportResult struct {
	Imported []*Book
	Failed   []ImportRowError
}

var catalogColumns = []string{"title", "author", "genre", "isbn", "copies", "image_url"}

// ImportCatalog reads a CSV catalog with a header row and adds one book per row.
// Recognized columns are title, author, genre, isbn, copies and image_url; title and
// author are required and copies defaults to 1. Bad rows are reported in the result
// and do not stop the import.
func (lm *LibraryManager) ImportCatalog(ctx context.Context, s *Session, r io.Reader) (*ImportResult, error) {
	if err := requireLibrarian(s); err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &ImportResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range catalogColumns[:2] {
		if _, ok := index[required]; !ok {
			return nil, Validationf("catalog is missing the %q column", required)
		}
	}

	res := &ImportResult{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("read catalog: %w", err)
			}
			res.Failed = append(res.Failed, ImportRowError{Line: pe.Line, Err: err})
			continue
		}
		line, _ := cr.FieldPos(0)

		book, err := bookFromRecord(record, index)
		if err == nil {
			_, err = lm.AddBook(ctx, s, book)
		}
		if err != nil {
			res.Failed = append(res.Failed, ImportRowError{Line: line, Err: err})
			continue
		}
		res.Imported = append(res.Imported, book)
	}

	lm.log.Info("catalog imported", "imported", len(res.Imported), "failed", len(res.Failed))
	return res, nil
}

func bookFromRecord(record []string, index map[string]int) (*Book, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	b := &Book{
		Title:       field("title"),
		Author:      field("author"),
		Genre:       field("genre"),
		ISBN:        field("isbn"),
		ImageURL:    field("image_url"),
		TotalCopies: 1,
	}
	if b.Title == "" || b.Author == "" {
		return nil, Validationf("title and author are required")
	}
	if raw := field("copies"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, Validationf("invalid copies %q", raw)
		}
		b.TotalCopies = n
	}
	return b, nil
}
