// Package kvstore provides the key-value persistence contract used for
// lifecycle records and settings, with in-memory and Redis backends.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store defines the key-value storage interface.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists all stored keys in no particular order.
	Keys(ctx context.Context) ([]string, error)
}
