// Package store provides a typed expiring key/value store on top of a
// byte-level storage backend.
package store

import (
	"encoding/json"
	"time"
)

type Store[T any] struct {
	storage Storage
	prefix  string
}

func New[T any](storage Storage, keyPrefix string) *Store[T] {
	return &Store[T]{
		storage: storage,
		prefix:  keyPrefix,
	}
}

func (s *Store[T]) Get(key string) (T, error) {
	var obj T
	raw, err := s.storage.Get(s.prefix + key)
	if err != nil {
		return obj, err
	}
	if len(raw) == 0 {
		return obj, ErrNotFound
	}
	err = json.Unmarshal(raw, &obj)
	return obj, err
}

func (s *Store[T]) Set(key string, val T, expiresIn time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.storage.Set(s.prefix+key, raw, expiresIn)
}

func (s *Store[T]) Delete(key string) error {
	return s.storage.Delete(s.prefix + key)
}

// Remove fetches and deletes the value in one step. This is the
// consumption side of a single-use token: reset-password only issues
// tokens today, and the completion flow that redeems them will consume
// each token through Remove exactly once.
func (s *Store[T]) Remove(key string) (T, error) {
	obj, err := s.Get(key)
	if err != nil {
		return obj, err
	}
	return obj, s.storage.Delete(s.prefix + key)
}
