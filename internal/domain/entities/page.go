package entities

// Page is one slice of a larger ordered result
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewPage builds a page and derives TotalPages as ceil(total/size)
func NewPage[T any](content []T, page, size int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// EmptyPage returns a page with no content and zero totals
func EmptyPage[T any](page, size int) Page[T] {
	return NewPage[T](nil, page, size, 0)
}

// IsEmpty reports whether the page has no content
func (p Page[T]) IsEmpty() bool {
	return len(p.Content) == 0
}

// Offset returns the number of rows to skip for a zero-based page index
func Offset(page, size int) int {
	return page * size
}
