/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import (
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
)

// Name of the negotiation protocol. Inbound envelopes carrying this protocol
// id are routed to the seller or buyer service of the agent.
const Name = "negotiation"

// Performatives of the negotiation protocol.
const (
	// CFPMsgType is sent by a buyer to solicit proposals for a query.
	CFPMsgType = "cfp"

	// ProposeMsgType is sent by a seller in reply to a cfp.
	ProposeMsgType = "propose"

	// AcceptMsgType is sent by a buyer to accept a proposal.
	AcceptMsgType = "accept"

	// DeclineMsgType is sent by either side to reject the targeted message.
	DeclineMsgType = "decline"

	// MatchAcceptMsgType confirms an accept and carries the seller's
	// payment address.
	MatchAcceptMsgType = "match-accept-w-inform"

	// InformMsgType carries free-form info: the transaction digest from the
	// buyer, or the traded data from the seller.
	InformMsgType = "inform"

	// ErrorMsgType is a dialogue-less reply sent when an inbound message
	// cannot be attributed to a dialogue.
	ErrorMsgType = "error"
)

// Well-known keys of the inform payload info map.
const (
	// InfoKeyAddress carries the seller's payment address in a match-accept.
	InfoKeyAddress = "address"

	// InfoKeyTransactionDigest carries the digest of the submitted payment.
	InfoKeyTransactionDigest = "transaction_digest"

	// InfoKeyDone marks completion of a trade that settles off-ledger.
	InfoKeyDone = "Done"
)

// Query describes the service a buyer is looking for.
type Query struct {
	ServiceID   string            `json:"service_id"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// Proposal is a seller's offer in reply to a cfp.
type Proposal struct {
	ServiceID string `json:"service_id"`
	LedgerID  string `json:"ledger_id"`
	Currency  string `json:"currency"`
	Price     uint64 `json:"price"`
	Quantity  int    `json:"quantity"`
	TxNonce   string `json:"tx_nonce"`
}

// CFPPayload is the body of a cfp message.
type CFPPayload struct {
	Query Query `json:"query"`
}

// ProposePayload is the body of a propose message.
type ProposePayload struct {
	Proposal Proposal `json:"proposal"`
}

// InformPayload is the body of inform and match-accept messages.
type InformPayload struct {
	Info map[string]string `json:"info"`
}

// DataPayload is the body of the final inform carrying the traded data.
type DataPayload struct {
	Data map[string]string `json:"data"`
}

// ErrorPayload is the body of a dialogue-less error message.
type ErrorPayload struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// initialPerformatives are the performatives allowed to open a dialogue.
var initialPerformatives = map[string]struct{}{ //nolint:gochecknoglobals
	CFPMsgType: {},
}

// IsInitialPerformative reports whether the performative may open a dialogue.
func IsInitialPerformative(performative string) bool {
	_, ok := initialPerformatives[performative]
	return ok
}

// NewErrorReply builds a dialogue-less error envelope in reply to a message
// that could not be attributed to a dialogue.
func NewErrorReply(msg *service.Message, code, description string) *service.Message {
	return &service.Message{
		Protocol:        Name,
		Performative:    ErrorMsgType,
		MessageID:       service.StartingMessageID,
		Target:          service.StartingTarget,
		ConversationRef: msg.ConversationRef,
		Sender:          msg.To,
		To:              msg.Sender,
		Body: map[string]interface{}{
			"code": code,
			"msg":  description,
		},
	}
}
