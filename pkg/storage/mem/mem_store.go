/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"errors"
	"strings"
	"sync"

	"github.com/agoralab/agora-framework-go/spi/storage"
)

// Provider is an in-memory implementation of the storage.Provider interface.
type Provider struct {
	dbs  map[string]*memStore
	lock sync.RWMutex
}

// NewProvider instantiates a new in-memory storage Provider.
func NewProvider() *Provider {
	return &Provider{dbs: make(map[string]*memStore)}
}

// OpenStore opens and returns a store for the given name space.
func (p *Provider) OpenStore(name string) (storage.Store, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	k := strings.ToLower(name)

	store, ok := p.dbs[k]
	if !ok {
		store = &memStore{db: make(map[string][]byte)}
		p.dbs[k] = store
	}

	return store, nil
}

// CloseStore closes the store of the given name space.
func (p *Provider) CloseStore(name string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	k := strings.ToLower(name)

	store, ok := p.dbs[k]
	if ok {
		delete(p.dbs, k)

		store.clear()
	}

	return nil
}

// Close closes all stores created under this provider.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	for _, store := range p.dbs {
		store.clear()
	}

	p.dbs = make(map[string]*memStore)

	return nil
}

type memStore struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// Put stores the key + value pair.
func (s *memStore) Put(k string, v []byte) error {
	if k == "" || v == nil {
		return errors.New("key and value are mandatory")
	}

	s.lock.Lock()
	s.db[k] = v
	s.lock.Unlock()

	return nil
}

// Get fetches the record for the given key.
func (s *memStore) Get(k string) ([]byte, error) {
	if k == "" {
		return nil, errors.New("key is mandatory")
	}

	s.lock.RLock()
	data, ok := s.db[k]
	s.lock.RUnlock()

	if !ok {
		return nil, storage.ErrDataNotFound
	}

	return data, nil
}

// Delete removes the record for the given key. Unknown keys are a no-op.
func (s *memStore) Delete(k string) error {
	if k == "" {
		return errors.New("key is mandatory")
	}

	s.lock.Lock()
	delete(s.db, k)
	s.lock.Unlock()

	return nil
}

func (s *memStore) clear() {
	s.lock.Lock()
	s.db = make(map[string][]byte)
	s.lock.Unlock()
}
