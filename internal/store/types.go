package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Storage is the byte-level key/value backend. The gofiber/storage drivers
// (redis, memory) satisfy it directly.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}
