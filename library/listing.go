package library

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Direction is a sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection maps "desc" (any case) to Descending and everything else to Ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Descending)) {
		return Descending
	}
	return Ascending
}

// Search keeps the items for which any of the extracted fields contains query,
// ignoring case. A blank query returns items unchanged.
func Search[T any](items []T, query string, fields func(T) []string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		for _, f := range fields(it) {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// BookSearchFields are the fields a catalog search matches against.
func BookSearchFields(b *Book) []string {
	if b == nil {
		return nil
	}
	return []string{b.Title, b.Author, b.Genre}
}

// BorrowingSearchFields are the fields a borrowing search matches against.
func BorrowingSearchFields(d *BorrowingDetail) []string {
	if d == nil {
		return nil
	}
	var fields []string
	if d.Book != nil {
		fields = append(fields, d.Book.Title, d.Book.Author)
	}
	if d.User != nil {
		fields = append(fields, d.User.Name, d.User.Email)
	}
	return fields
}

// Sort returns a stably sorted copy of items ordered by the value at field, a dotted
// path of JSON field names such as "book.title". Missing or nil values sort as "".
// Strings compare case-insensitively; numbers and times compare by value.
func Sort[T any](items []T, field string, dir Direction) []T {
	out := slices.Clone(items)
	if strings.TrimSpace(field) == "" {
		return out
	}
	path := strings.Split(field, ".")
	slices.SortStableFunc(out, func(a, b T) int {
		c := compareValues(resolvePath(reflect.ValueOf(a), path), resolvePath(reflect.ValueOf(b), path))
		if dir == Descending {
			return -c
		}
		return c
	})
	return out
}

// SortState tracks the active sort column of a listing. Toggling the active field flips
// the direction; toggling a different field switches to it in ascending order.
type SortState struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Toggle applies a click on field and returns the new state.
func (s SortState) Toggle(field string) SortState {
	if s.Field == field {
		if s.Direction == Ascending {
			return SortState{Field: field, Direction: Descending}
		}
		return SortState{Field: field, Direction: Ascending}
	}
	return SortState{Field: field, Direction: Ascending}
}

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Page is one slice of a paginated listing. Page numbers start at 1.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// Paginate cuts items into pages of pageSize and returns page number page.
// Out of range page numbers are clamped to the first or last page.
func Paginate[T any](items []T, pageSize, page int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	page = max(1, min(page, totalPages))

	start := min((page-1)*pageSize, total)
	end := start + min(pageSize, total-start)

	return Page[T]{
		Items:      append(make([]T, 0, end-start), items[start:end]...),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: total,
	}
}

// resolvePath walks v along path, matching struct fields by JSON name (or Go name,
// case-insensitively) and map keys by string. It returns an invalid Value when any
// step is missing or nil.
func resolvePath(v reflect.Value, path []string) reflect.Value {
	for _, key := range path {
		v = indirect(v)
		if !v.IsValid() {
			return v
		}
		switch v.Kind() {
		case reflect.Struct:
			v = structField(v, key)
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return reflect.Value{}
			}
			v = v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		default:
			return reflect.Value{}
		}
	}
	return indirect(v)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func structField(v reflect.Value, key string) reflect.Value {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && jsonName(f) == "" {
			inner := indirect(v.Field(i))
			if inner.IsValid() && inner.Kind() == reflect.Struct {
				if found := structField(inner, key); found.IsValid() {
					return found
				}
			}
			continue
		}
		name := jsonName(f)
		if name == "-" {
			continue
		}
		if name == key || (name == "" && strings.EqualFold(f.Name, key)) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	return name
}

var timeType = reflect.TypeOf(time.Time{})

func compareValues(a, b reflect.Value) int {
	if a.IsValid() && b.IsValid() {
		switch {
		case a.Type() == timeType && b.Type() == timeType:
			return a.Interface().(time.Time).Compare(b.Interface().(time.Time))
		case isNumber(a) && isNumber(b):
			return cmp.Compare(toFloat(a), toFloat(b))
		}
	}
	return strings.Compare(strings.ToLower(toString(a)), strings.ToLower(toString(b)))
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

func toString(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	if v.CanInterface() {
		return fmt.Sprint(v.Interface())
	}
	return ""
}
