// pagination.go: HATEOAS pagination via RFC 8288 Link headers.
//
// Response bodies implement the Pager interface to emit next/prev/first/last
// Link headers, which the Links transformer writes.
package humastar

import "fmt"

// DefaultLimit is the page size used when a request does not pass one.
const DefaultLimit = 20

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a paginated response envelope.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Page slices all into a PageBody. Out-of-range offsets give an empty page.
func Page[T any](all []T, offset, limit int) PageBody[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset = max(offset, 0)
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return PageBody[T]{
		Total:  len(all),
		Offset: offset,
		Limit:  limit,
		Data:   all[start:end],
	}
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	last := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	return append(links, link(last, "last"))
}
