/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package storage

import "errors"

// ErrDataNotFound is returned when data is not found.
var ErrDataNotFound = errors.New("data not found")

// Provider represents a storage provider.
type Provider interface {
	// OpenStore opens a store with the given name and returns a handle.
	// If the store has never been opened before, then it is created.
	// Store names are not case-sensitive.
	OpenStore(name string) (Store, error)

	// CloseStore closes the store with the given name.
	CloseStore(name string) error

	// Close closes all stores that were opened under this provider.
	Close() error
}

// Store represents a storage database.
type Store interface {
	// Put stores the key + value pair.
	Put(k string, v []byte) error

	// Get fetches the value associated with the given key.
	// If key cannot be found, then an error wrapping ErrDataNotFound is returned.
	Get(k string) ([]byte, error)

	// Delete deletes the key + value pair associated with the given key.
	// Deleting a key that does not exist is a no-op.
	Delete(k string) error
}
