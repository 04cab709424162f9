/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StartingMessageID is the message id of the first message of a conversation.
const StartingMessageID = 1

// StartingTarget is the target of the first message of a conversation.
const StartingTarget = 0

// Message is the envelope exchanged between agents. The performative is the
// speech-act tag of the message; Target references the message this one
// replies to (StartingTarget for the first message of a conversation).
//
// Message ids are signed: ids of messages sent by the conversation starter
// are positive, ids of messages sent by the responder are negative. Each
// side increments the magnitude independently, so both can emit without
// coordinating on a shared counter.
type Message struct {
	Protocol        string                 `json:"protocol"`
	Performative    string                 `json:"performative"`
	MessageID       int64                  `json:"message_id"`
	Target          int64                  `json:"target"`
	ConversationRef string                 `json:"conversation_ref"`
	Sender          string                 `json:"sender"`
	To              string                 `json:"to"`
	ReplyTo         string                 `json:"reply_to,omitempty"`
	Body            map[string]interface{} `json:"body,omitempty"`
}

// ParseMessage parses the given payload into a Message and validates the
// envelope fields required for routing.
func ParseMessage(payload []byte) (*Message, error) {
	msg := &Message{}

	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("invalid message payload: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks the envelope fields required for routing.
func (m *Message) Validate() error {
	switch {
	case m.Protocol == "":
		return errors.New("message 'protocol' field is not set")
	case m.Performative == "":
		return errors.New("message 'performative' field is not set")
	case m.Sender == "":
		return errors.New("message 'sender' field is not set")
	case m.To == "":
		return errors.New("message 'to' field is not set")
	case m.MessageID == 0:
		return errors.New("message 'message_id' field is not set")
	}

	return nil
}

// Marshal returns the wire representation of the message.
func (m *Message) Marshal() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return payload, nil
}

// Decode decodes the message body into the given typed value.
func (m *Message) Decode(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           v,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(m.Body)
}

// Clone returns a deep copy of the message envelope.
func (m *Message) Clone() *Message {
	clone := *m

	if m.Body != nil {
		clone.Body = make(map[string]interface{}, len(m.Body))
		for k, v := range m.Body {
			clone.Body[k] = v
		}
	}

	return &clone
}
