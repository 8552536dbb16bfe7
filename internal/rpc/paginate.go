package rpc

import "sort"

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Window describes the id range of one pagination result. An empty window
// reports first=last=-1 and count 0.
type Window struct {
	FirstID int64 `json:"first_id"`
	LastID  int64 `json:"last_id"`
	Count   int   `json:"count"`
}

type page[T any] struct {
	Window
	Items []T `json:"items"`
}

// pageRequest carries the wire-level pagination inputs shared by every list
// endpoint.
type pageRequest struct {
	Start uint64 `json:"start"`
	Count int    `json:"count"`
}

// paginate sorts the candidates ascending by id, keeps ids >= start, and
// truncates to count. It is idempotent for identical inputs over unchanged
// candidates.
func paginate[T any](items []T, id func(T) uint64, start uint64, count int) page[T] {
	if count <= 0 {
		count = defaultPageSize
	}
	if count > maxPageSize {
		count = maxPageSize
	}

	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return id(sorted[i]) < id(sorted[j]) })

	from := sort.Search(len(sorted), func(i int) bool { return id(sorted[i]) >= start })
	window := sorted[from:]
	if len(window) > count {
		window = window[:count]
	}

	result := page[T]{
		Window: Window{FirstID: -1, LastID: -1},
		Items:  window,
	}
	if len(window) == 0 {
		result.Items = []T{}
	}
	if len(window) > 0 {
		result.FirstID = int64(id(window[0]))
		result.LastID = int64(id(window[len(window)-1]))
		result.Count = len(window)
	}
	return result
}
