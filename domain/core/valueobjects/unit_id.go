package valueobjects

import "github.com/google/uuid"

// NewUnitID returns a random UUID v4 string for units created without an id
func NewUnitID() string {
	return uuid.New().String()
}

// IsUUID reports whether id parses as a UUID
func IsUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
