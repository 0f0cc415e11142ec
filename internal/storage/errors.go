package storage

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedFilter is returned for queries only the server can answer.
	ErrUnsupportedFilter = errors.New("filter not supported by offline cache")
)
