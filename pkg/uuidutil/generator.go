package uuidutil

import "github.com/google/uuid"

func New() string {
	return uuid.New().String()
}

// NewOrdered returns a time-ordered UUIDv7, so stored records sort by id.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		return New()
	}
	return id.String()
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
