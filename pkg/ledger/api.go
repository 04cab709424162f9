/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger defines the settlement contracts the negotiation protocol
// depends on. Concrete gateways talk to a ledger network; the in-memory
// implementation under inmem settles instantly for local runs and tests.
package ledger

import (
	"context"

	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// RawTransaction is an unsigned ledger transaction built from terms.
type RawTransaction struct {
	LedgerID string `json:"ledger_id"`
	Payload  []byte `json:"payload"`
}

// SignedTransaction is a raw transaction signed by the payer.
type SignedTransaction struct {
	LedgerID string `json:"ledger_id"`
	Payload  []byte `json:"payload"`
}

// Digest identifies a submitted transaction on its ledger.
type Digest struct {
	LedgerID string `json:"ledger_id"`
	Body     string `json:"body"`
}

// Transaction is the transfer recorded on the ledger.
type Transaction struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
	Currency string `json:"currency"`
	Nonce    string `json:"nonce"`
}

// Receipt is the ledger's view of a submitted transaction.
type Receipt struct {
	Settled     bool         `json:"settled"`
	Transaction *Transaction `json:"transaction"`
}

// Gateway is the read/submit interface to a ledger network. Implementations
// are expected to be safe for concurrent use; calls may block on network io
// and honour the passed context.
type Gateway interface {
	// GetBalance returns the balance of the address on the given ledger.
	GetBalance(ctx context.Context, ledgerID, address string) (uint64, error)

	// GetRawTransaction builds the unsigned transfer transaction encoding
	// the given terms.
	GetRawTransaction(ctx context.Context, terms *negotiation.Terms) (*RawTransaction, error)

	// SendSignedTransaction submits the signed transaction and returns its
	// digest.
	SendSignedTransaction(ctx context.Context, tx *SignedTransaction) (*Digest, error)

	// GetTransactionReceipt fetches the receipt for the given digest.
	GetTransactionReceipt(ctx context.Context, digest *Digest) (*Receipt, error)
}

// Signer signs raw transactions with the agent's ledger key.
type Signer interface {
	SignTransaction(ctx context.Context, raw *RawTransaction, terms *negotiation.Terms) (*SignedTransaction, error)
}

// IsSettled reports whether the receipt shows a finalized transaction.
func IsSettled(receipt *Receipt) bool {
	return receipt != nil && receipt.Settled
}

// IsValid reports whether the settled transfer matches the given terms from
// the payee's perspective: paid by the terms counterparty to the terms
// sender, carrying the terms nonce, for the exact payable amount.
func IsValid(receipt *Receipt, terms *negotiation.Terms) bool {
	if receipt == nil || receipt.Transaction == nil {
		return false
	}

	tx := receipt.Transaction

	return tx.To == terms.SenderAddress &&
		tx.From == terms.CounterpartyAddress &&
		tx.Nonce == terms.Nonce &&
		tx.Currency == terms.Currency() &&
		tx.Amount == terms.CounterpartyPayableAmount()
}
