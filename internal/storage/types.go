package storage

import "errors"

var (
	// ErrNotFound indicates that the requested row was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBuiltinCategory indicates an attempt to delete a built-in category.
	ErrBuiltinCategory = errors.New("built-in category cannot be deleted")
)

// EntryFilter narrows entry listings. Zero values mean no filter.
type EntryFilter struct {
	// Category restricts to a single category name.
	Category string

	// Year restricts to entries whose date falls in the given calendar year.
	Year int

	// Search is a case-insensitive substring match against note and station.
	Search string
}
