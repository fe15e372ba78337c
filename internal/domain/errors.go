package domain

import "errors"

// Validation errors. They are returned before anything is committed.
var (
	ErrEmptyName  = errors.New("name is required")
	ErrEmptyURL   = errors.New("url is required")
	ErrInvalidURL = errors.New("url is not valid")
)

// List shape errors.
var (
	ErrMissingID       = errors.New("item has no id")
	ErrDuplicateID     = errors.New("duplicate item id")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrItemNotFound    = errors.New("item not found")
)

// IsValidation reports whether err is a user input error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrEmptyURL) ||
		errors.Is(err, ErrInvalidURL)
}
