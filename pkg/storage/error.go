package storage

// NotFoundError is returned when a task doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "task not found"
	}
	return "task not found: " + e.ID
}
