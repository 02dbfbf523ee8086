package scheduler

import "github.com/google/uuid"

// IDGenerator issues unique ids for committed entries.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() string

// NewID implements IDGenerator.
func (f IDFunc) NewID() string {
	return f()
}

// UUIDGenerator returns random UUIDv4 strings.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
