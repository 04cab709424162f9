/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"fmt"
	"sync"
)

// AddressBook is an in-memory Resolver. Entries are learned from directory
// search results and from the reply-to endpoint of inbound messages.
type AddressBook struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

// NewAddressBook creates an empty address book.
func NewAddressBook() *AddressBook {
	return &AddressBook{endpoints: make(map[string]string)}
}

// SetEndpoint records the transport endpoint for the given agent address.
func (b *AddressBook) SetEndpoint(address, endpoint string) {
	if address == "" || endpoint == "" {
		return
	}

	b.mu.Lock()
	b.endpoints[address] = endpoint
	b.mu.Unlock()
}

// Endpoint resolves the transport endpoint for the given agent address.
func (b *AddressBook) Endpoint(address string) (string, error) {
	b.mu.RLock()
	endpoint, ok := b.endpoints[address]
	b.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("no endpoint known for address %s", address)
	}

	return endpoint, nil
}
