package domain

import "errors"

var (
	// ErrPluginNotFound is returned when an entity type has no registered storage
	ErrPluginNotFound = errors.New("entity type storage not found")

	// ErrMissingData is returned when the first item of an empty field is requested
	ErrMissingData = errors.New("field has no item")
)
