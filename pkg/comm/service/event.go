/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"errors"
	"sync"
)

// ErrNilChannel is returned when a nil channel is registered for events.
var ErrNilChannel = errors.New("cannot pass nil channel")

// StateMsgType is the type of a state message.
type StateMsgType int

const (
	// PreState is sent before a state transition is applied.
	PreState StateMsgType = iota

	// PostState is sent after a state transition is applied.
	PostState
)

// StateMsg is passed on the MsgEvent channels to notify consumers of protocol
// state transitions. Consumers must not mutate the message.
type StateMsg struct {
	// ProtocolName is the name of the protocol emitting the event.
	ProtocolName string

	// Type of the message (pre or post), refer StateMsgType.
	Type StateMsgType

	// StateID is the protocol state the conversation transitioned to.
	StateID string

	// Msg is the message that caused the transition.
	Msg *Message

	// Properties contains protocol-specific event data.
	Properties map[string]interface{}
}

// MsgEvent is a thread-safe state message event registry. Protocol services
// embed it to offer observers notification of state transitions.
type MsgEvent struct {
	mu     sync.RWMutex
	events []chan<- StateMsg
}

// MsgEvents returns the registered event channels.
func (m *MsgEvent) MsgEvents() []chan<- StateMsg {
	m.mu.RLock()
	events := append(m.events[:0:0], m.events...)
	m.mu.RUnlock()

	return events
}

// RegisterMsgEvent registers a channel for protocol state events. The service
// does not expect any callback on these events.
func (m *MsgEvent) RegisterMsgEvent(ch chan<- StateMsg) error {
	if ch == nil {
		return ErrNilChannel
	}

	m.mu.Lock()
	m.events = append(m.events, ch)
	m.mu.Unlock()

	return nil
}

// UnregisterMsgEvent removes a channel registered via RegisterMsgEvent().
func (m *MsgEvent) UnregisterMsgEvent(ch chan<- StateMsg) error {
	m.mu.Lock()
	for i := 0; i < len(m.events); i++ {
		if m.events[i] == ch {
			m.events = append(m.events[:i], m.events[i+1:]...)
			i--
		}
	}
	m.mu.Unlock()

	return nil
}
