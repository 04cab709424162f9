/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mockstorage provides storage mocks for tests.
package mockstorage

import (
	"sync"

	"github.com/agoralab/agora-framework-go/spi/storage"
)

// MockStoreProvider mock store provider.
type MockStoreProvider struct {
	Store              *MockStore
	ErrOpenStoreHandle error
	ErrCloseStore      error
	ErrClose           error
}

// NewMockStoreProvider new store provider instance.
func NewMockStoreProvider() *MockStoreProvider {
	return &MockStoreProvider{Store: &MockStore{Store: make(map[string][]byte)}}
}

// OpenStore opens and returns the mock store.
func (p *MockStoreProvider) OpenStore(string) (storage.Store, error) {
	return p.Store, p.ErrOpenStoreHandle
}

// CloseStore closes the store of the given name space.
func (p *MockStoreProvider) CloseStore(string) error {
	return p.ErrCloseStore
}

// Close closes all stores created under this provider.
func (p *MockStoreProvider) Close() error {
	return p.ErrClose
}

// MockStore mock store.
type MockStore struct {
	Store  map[string][]byte
	mu     sync.RWMutex
	ErrPut error
	ErrGet error
	ErrDel error
}

// Put stores the key + value pair.
func (s *MockStore) Put(k string, v []byte) error {
	if s.ErrPut != nil {
		return s.ErrPut
	}

	s.mu.Lock()
	s.Store[k] = v
	s.mu.Unlock()

	return nil
}

// Get fetches the record for the given key.
func (s *MockStore) Get(k string) ([]byte, error) {
	if s.ErrGet != nil {
		return nil, s.ErrGet
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.Store[k]
	if !ok {
		return nil, storage.ErrDataNotFound
	}

	return v, nil
}

// Delete removes the record for the given key.
func (s *MockStore) Delete(k string) error {
	if s.ErrDel != nil {
		return s.ErrDel
	}

	s.mu.Lock()
	delete(s.Store, k)
	s.mu.Unlock()

	return nil
}
