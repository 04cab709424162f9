/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package directory

import (
	"context"
	"sync"
)

// InMemory is a directory held in process memory. It backs local runs where
// both agents share a process, and tests.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*Description
}

// NewInMemory creates an empty in-memory directory.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*Description)}
}

// RegisterService advertises the description, replacing any previous entry
// for the same address.
func (d *InMemory) RegisterService(ctx context.Context, desc *Description) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.entries[desc.Address] = desc
	d.mu.Unlock()

	return nil
}

// UnregisterService removes the advertisement of the address.
func (d *InMemory) UnregisterService(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	delete(d.entries, address)
	d.mu.Unlock()

	return nil
}

// SearchServices returns the registered descriptions matching the query's
// service id and constraints.
func (d *InMemory) SearchServices(ctx context.Context, query *Query) ([]*Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []*Description

	for _, desc := range d.entries {
		if desc.ServiceID != query.ServiceID {
			continue
		}

		if !matchesConstraints(desc, query.Constraints) {
			continue
		}

		matches = append(matches, desc)
	}

	return matches, nil
}

func matchesConstraints(desc *Description, constraints map[string]string) bool {
	for k, v := range constraints {
		if desc.Attributes[k] != v {
			return false
		}
	}

	return true
}
