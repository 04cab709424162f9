/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mockdispatcher provides outbound dispatcher mocks for tests.
package mockdispatcher

import (
	"sync"

	"github.com/agoralab/agora-framework-go/pkg/comm/service"
)

// MockOutbound mock outbound dispatcher. It records every sent envelope.
type MockOutbound struct {
	// SendErr is returned by Send when set.
	SendErr error

	mu   sync.Mutex
	sent []*service.Message
}

// Send records the message.
func (m *MockOutbound) Send(msg *service.Message) error {
	if m.SendErr != nil {
		return m.SendErr
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	return nil
}

// Sent returns all recorded messages.
func (m *MockOutbound) Sent() []*service.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append(m.sent[:0:0], m.sent...)
}

// Last returns the newest recorded message, or nil.
func (m *MockOutbound) Last() *service.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}

	return m.sent[len(m.sent)-1]
}

// ByPerformative returns the recorded messages with the given performative.
func (m *MockOutbound) ByPerformative(performative string) []*service.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*service.Message

	for _, msg := range m.sent {
		if msg.Performative == performative {
			matches = append(matches, msg)
		}
	}

	return matches
}
