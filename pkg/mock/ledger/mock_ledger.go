/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mockledger provides ledger gateway and signer mocks for tests.
package mockledger

import (
	"context"

	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// MockGateway mock ledger gateway.
type MockGateway struct {
	BalanceValue uint64
	BalanceErr   error

	RawTransactionValue *ledger.RawTransaction
	RawTransactionErr   error

	DigestValue *ledger.Digest
	SendErr     error

	ReceiptValue *ledger.Receipt
	ReceiptErr   error
}

// GetBalance mock.
func (m *MockGateway) GetBalance(context.Context, string, string) (uint64, error) {
	return m.BalanceValue, m.BalanceErr
}

// GetRawTransaction mock.
func (m *MockGateway) GetRawTransaction(context.Context, *negotiation.Terms) (*ledger.RawTransaction, error) {
	return m.RawTransactionValue, m.RawTransactionErr
}

// SendSignedTransaction mock.
func (m *MockGateway) SendSignedTransaction(context.Context, *ledger.SignedTransaction) (*ledger.Digest, error) {
	return m.DigestValue, m.SendErr
}

// GetTransactionReceipt mock.
func (m *MockGateway) GetTransactionReceipt(context.Context, *ledger.Digest) (*ledger.Receipt, error) {
	return m.ReceiptValue, m.ReceiptErr
}

// MockSigner mock transaction signer.
type MockSigner struct {
	SignedValue *ledger.SignedTransaction
	SignErr     error
}

// SignTransaction mock.
func (m *MockSigner) SignTransaction(context.Context, *ledger.RawTransaction, *negotiation.Terms,
) (*ledger.SignedTransaction, error) {
	return m.SignedValue, m.SignErr
}
