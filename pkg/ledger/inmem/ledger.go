/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inmem provides an in-memory ledger that settles transfers
// instantly. It backs local runs and tests; production deployments plug a
// real ledger gateway instead.
package inmem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// ErrInsufficientFunds is returned when the payer balance cannot cover the
// transfer plus fee.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is an in-memory ledger.Gateway and ledger.Signer.
type Ledger struct {
	ledgerID string

	mu       sync.Mutex
	balances map[string]uint64
	receipts map[string]*ledger.Receipt
}

// New creates an in-memory ledger with the given initial balances.
func New(ledgerID string, balances map[string]uint64) *Ledger {
	l := &Ledger{
		ledgerID: ledgerID,
		balances: make(map[string]uint64, len(balances)),
		receipts: make(map[string]*ledger.Receipt),
	}

	for address, balance := range balances {
		l.balances[address] = balance
	}

	return l
}

// Fund credits the address with the given amount.
func (l *Ledger) Fund(address string, amount uint64) {
	l.mu.Lock()
	l.balances[address] += amount
	l.mu.Unlock()
}

// GetBalance returns the balance of the address.
func (l *Ledger) GetBalance(ctx context.Context, ledgerID, address string) (uint64, error) {
	if err := l.check(ctx, ledgerID); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[address], nil
}

// GetRawTransaction builds the unsigned transfer encoding the terms.
func (l *Ledger) GetRawTransaction(ctx context.Context, terms *negotiation.Terms) (*ledger.RawTransaction, error) {
	if err := l.check(ctx, terms.LedgerID); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("encode transfer terms: %w", err)
	}

	return &ledger.RawTransaction{LedgerID: l.ledgerID, Payload: payload}, nil
}

// SignTransaction signs the raw transaction. The in-memory ledger performs no
// real signing.
func (l *Ledger) SignTransaction(ctx context.Context, raw *ledger.RawTransaction, _ *negotiation.Terms) (*ledger.SignedTransaction, error) {
	if err := l.check(ctx, raw.LedgerID); err != nil {
		return nil, err
	}

	return &ledger.SignedTransaction{LedgerID: raw.LedgerID, Payload: raw.Payload}, nil
}

// SendSignedTransaction applies the transfer and returns its digest. The
// payer covers the transfer amount plus its fee share.
func (l *Ledger) SendSignedTransaction(ctx context.Context, tx *ledger.SignedTransaction) (*ledger.Digest, error) {
	if err := l.check(ctx, tx.LedgerID); err != nil {
		return nil, err
	}

	terms := &negotiation.Terms{}
	if err := json.Unmarshal(tx.Payload, terms); err != nil {
		return nil, fmt.Errorf("decode transfer terms: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := terms.SenderPayableAmount()
	if l.balances[terms.SenderAddress] < total {
		return nil, fmt.Errorf("%w: %s needs %d", ErrInsufficientFunds, terms.SenderAddress, total)
	}

	l.balances[terms.SenderAddress] -= total
	l.balances[terms.CounterpartyAddress] += terms.Amount()

	digest := &ledger.Digest{LedgerID: l.ledgerID, Body: uuid.New().String()}

	l.receipts[digest.Body] = &ledger.Receipt{
		Settled: true,
		Transaction: &ledger.Transaction{
			From:     terms.SenderAddress,
			To:       terms.CounterpartyAddress,
			Amount:   terms.Amount(),
			Currency: terms.Currency(),
			Nonce:    terms.Nonce,
		},
	}

	return digest, nil
}

// GetTransactionReceipt fetches the receipt for the digest.
func (l *Ledger) GetTransactionReceipt(ctx context.Context, digest *ledger.Digest) (*ledger.Receipt, error) {
	if err := l.check(ctx, digest.LedgerID); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, ok := l.receipts[digest.Body]
	if !ok {
		return nil, fmt.Errorf("no transaction with digest %s", digest.Body)
	}

	return receipt, nil
}

func (l *Ledger) check(ctx context.Context, ledgerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ledgerID != l.ledgerID {
		return fmt.Errorf("unsupported ledger id %s", ledgerID)
	}

	return nil
}
