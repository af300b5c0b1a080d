package changelist

import "errors"

var (
	errInvalidPage = errors.New("page number is not valid")
	errEmptyPage   = errors.New("page contains no results")
)

// Paginator splits Count rows into pages of PerPage rows. Pages are
// 1-indexed; an empty result still has one (empty) page.
type Paginator struct {
	Count   int
	PerPage int
}

// NumPages is the number of pages, at least 1.
func (p Paginator) NumPages() int {
	if p.Count == 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Count + p.PerPage - 1) / p.PerPage
}

// ValidatePage checks that page exists.
func (p Paginator) ValidatePage(page int) error {
	if page < 1 {
		return errInvalidPage
	}
	if page > p.NumPages() {
		return errEmptyPage
	}
	return nil
}

// Bounds returns the offset and limit of page.
func (p Paginator) Bounds(page int) (offset, limit int) {
	return (page - 1) * p.PerPage, p.PerPage
}

// PageRange lists every page number.
func (p Paginator) PageRange() []int {
	pages := make([]int, p.NumPages())
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
