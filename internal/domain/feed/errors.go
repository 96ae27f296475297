package feed

import "errors"

// Feed domain errors
var (
	ErrItemNotFound       = errors.New("content item not found")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrEmptyTitle         = errors.New("content title is required")
	ErrEmptyComment       = errors.New("comment body is required")
)
