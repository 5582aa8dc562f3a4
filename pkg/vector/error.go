package vector

import "errors"

var (
	// ErrConnection is returned when the vector store cannot be reached or
	// its collection cannot be prepared.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch is returned when an embedding's length differs from
	// the dimensions the store was created with.
	ErrDimensionMismatch = errors.New("embedding dimensions do not match the vector store")
)
