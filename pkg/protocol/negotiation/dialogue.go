/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agoralab/agora-framework-go/pkg/comm/service"
)

// ErrUnidentifiedDialogue is returned when an inbound message cannot be
// attributed to a dialogue: its label is unknown and it is not a valid
// opening message, or its target does not reference a seen message.
var ErrUnidentifiedDialogue = errors.New("unidentified dialogue")

// Role of an agent in a negotiation dialogue.
type Role string

// Roles of the negotiation protocol.
const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// RoleFromOpening derives an agent's role from who opened the dialogue: only
// buyers send the opening cfp, so the starter is the buyer.
func RoleFromOpening(_ *service.Message, selfInitiated bool) Role {
	if selfInitiated {
		return RoleBuyer
	}

	return RoleSeller
}

// EndState is the recorded outcome of a completed negotiation.
type EndState int

// End states of a negotiation dialogue.
const (
	// EndStateDeclinedProposal: the negotiation stopped at the proposal
	// stage (cfp or propose was declined).
	EndStateDeclinedProposal EndState = iota

	// EndStateDeclinedAccept: the negotiation stopped after an accept was
	// declined.
	EndStateDeclinedAccept

	// EndStateSuccessful: the trade completed and the data was delivered.
	EndStateSuccessful
)

func (e EndState) String() string {
	switch e {
	case EndStateDeclinedProposal:
		return "declined_at_proposal"
	case EndStateDeclinedAccept:
		return "declined_at_accept"
	case EndStateSuccessful:
		return "successful"
	}

	return "unknown"
}

// Label identifies a dialogue: the conversation reference chosen by the
// starter plus the two agent addresses.
type Label struct {
	ConversationRef string `json:"conversation_ref"`
	Counterparty    string `json:"counterparty"`
	Self            string `json:"self"`
}

// Key returns the storage key of the label.
func (l Label) Key() string {
	return fmt.Sprintf("%s_%s", l.ConversationRef, l.Counterparty)
}

func (l Label) String() string {
	return fmt.Sprintf("%s[%s->%s]", l.ConversationRef, l.Self, l.Counterparty)
}

// Dialogue is one negotiation conversation with a counterparty. It records
// the full message history, the agent's role, the protocol state and, once
// agreed, the transaction terms.
//
// A dialogue is not safe for concurrent mutation; callers processing messages
// for the same dialogue from multiple goroutines must hold its lock via
// Lock/Unlock for the duration of the handling.
type Dialogue struct {
	mu sync.Mutex

	label   Label
	role    Role
	starter bool

	state       string
	terms       *Terms
	dataForSale map[string]string

	messages       []*service.Message
	byID           map[int64]*service.Message
	lastOutgoingID int64

	ended    bool
	endState EndState
}

func newDialogue(label Label, role Role, starter bool) *Dialogue {
	return &Dialogue{
		label:   label,
		role:    role,
		starter: starter,
		byID:    make(map[int64]*service.Message),
	}
}

// Lock acquires the dialogue's handling lock.
func (d *Dialogue) Lock() { d.mu.Lock() }

// Unlock releases the dialogue's handling lock.
func (d *Dialogue) Unlock() { d.mu.Unlock() }

// Label returns the dialogue label.
func (d *Dialogue) Label() Label { return d.label }

// Role returns the agent's role in this dialogue.
func (d *Dialogue) Role() Role { return d.role }

// SelfInitiated reports whether this agent started the dialogue.
func (d *Dialogue) SelfInitiated() bool { return d.starter }

// State returns the protocol state of the dialogue.
func (d *Dialogue) State() string { return d.state }

// SetState moves the dialogue to the given protocol state.
func (d *Dialogue) SetState(state string) { d.state = state }

// Terms returns the transaction terms of the dialogue.
func (d *Dialogue) Terms() (*Terms, error) {
	if d.terms == nil {
		return nil, ErrTermsNotSet
	}

	return d.terms, nil
}

// SetTerms attaches transaction terms to the dialogue. Terms are write-once.
func (d *Dialogue) SetTerms(terms *Terms) error {
	if d.terms != nil {
		return ErrTermsAlreadySet
	}

	if terms == nil {
		return errors.New("terms are mandatory")
	}

	d.terms = terms

	return nil
}

// UpdateCounterpartyAddress replaces the counterparty (payee) address of the
// terms. This is the only terms field that may change after SetTerms: the
// payment address becomes known only with the seller's match-accept.
func (d *Dialogue) UpdateCounterpartyAddress(address string) error {
	if d.terms == nil {
		return ErrTermsNotSet
	}

	if address == "" {
		return errors.New("address is mandatory")
	}

	d.terms.CounterpartyAddress = address

	return nil
}

// DataForSale returns the data reserved for this dialogue.
func (d *Dialogue) DataForSale() map[string]string { return d.dataForSale }

// SetDataForSale reserves the data to deliver when this dialogue settles.
func (d *Dialogue) SetDataForSale(data map[string]string) { d.dataForSale = data }

// LastIncomingMessage returns the newest message received from the
// counterparty, or nil.
func (d *Dialogue) LastIncomingMessage() *service.Message {
	for i := len(d.messages) - 1; i >= 0; i-- {
		if d.messages[i].Sender == d.label.Counterparty {
			return d.messages[i]
		}
	}

	return nil
}

// LastOutgoingMessage returns the newest message sent by this agent, or nil.
func (d *Dialogue) LastOutgoingMessage() *service.Message {
	for i := len(d.messages) - 1; i >= 0; i-- {
		if d.messages[i].Sender == d.label.Self {
			return d.messages[i]
		}
	}

	return nil
}

// GetMessageByID returns the message with the given signed id, or nil.
func (d *Dialogue) GetMessageByID(id int64) *service.Message {
	return d.byID[id]
}

// Reply builds the next outgoing message of the dialogue in reply to the
// given target message, appends it to the history and returns it. The caller
// is responsible for sending it.
func (d *Dialogue) Reply(performative string, target *service.Message, body map[string]interface{}) (*service.Message, error) {
	if target == nil {
		target = d.LastIncomingMessage()
	}

	if target == nil {
		return nil, errors.New("reply requires a target message")
	}

	if d.byID[target.MessageID] == nil {
		return nil, fmt.Errorf("target message %d does not belong to dialogue %s", target.MessageID, d.label)
	}

	msg := &service.Message{
		Protocol:        Name,
		Performative:    performative,
		MessageID:       d.nextOutgoingID(),
		Target:          target.MessageID,
		ConversationRef: d.label.ConversationRef,
		Sender:          d.label.Self,
		To:              d.label.Counterparty,
		Body:            body,
	}

	d.append(msg)

	return msg, nil
}

// nextOutgoingID computes the signed id of the next message sent by this
// agent: positive magnitudes for the conversation starter, negative for the
// responder.
func (d *Dialogue) nextOutgoingID() int64 {
	d.lastOutgoingID++

	if d.starter {
		return d.lastOutgoingID
	}

	return -d.lastOutgoingID
}

func (d *Dialogue) append(msg *service.Message) {
	d.messages = append(d.messages, msg)
	d.byID[msg.MessageID] = msg
}

// receive validates and appends an inbound message. The first message of a
// dialogue must carry the starting id and target; every later message must
// target a message already in the history.
func (d *Dialogue) receive(msg *service.Message) error {
	if len(d.messages) == 0 {
		if msg.MessageID != service.StartingMessageID || msg.Target != service.StartingTarget {
			return fmt.Errorf("%w: invalid opening message id %d target %d",
				ErrUnidentifiedDialogue, msg.MessageID, msg.Target)
		}
	} else {
		if d.byID[msg.Target] == nil {
			return fmt.Errorf("%w: target %d references no message of dialogue %s",
				ErrUnidentifiedDialogue, msg.Target, d.label)
		}

		if d.byID[msg.MessageID] != nil {
			return fmt.Errorf("%w: duplicate message id %d in dialogue %s",
				ErrUnidentifiedDialogue, msg.MessageID, d.label)
		}
	}

	d.append(msg)

	return nil
}

// Ended reports whether the dialogue reached a recorded end state, and which.
func (d *Dialogue) Ended() (EndState, bool) {
	return d.endState, d.ended
}

func (d *Dialogue) setEnded(endState EndState) {
	d.endState = endState
	d.ended = true
}
