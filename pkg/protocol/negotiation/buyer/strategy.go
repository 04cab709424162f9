/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package buyer

import (
	"errors"

	"github.com/agoralab/agora-framework-go/pkg/directory"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// Config holds the buying strategy parameters.
type Config struct {
	// ServiceID is the type of data sought.
	ServiceID string

	// LedgerID names the ledger payments settle on. Ignored when
	// IsLedgerTx is false.
	LedgerID string

	// Currency payments are denominated in.
	Currency string

	// MaxUnitPrice is the highest acceptable price per data row.
	MaxUnitPrice uint64

	// MaxTxFee is the fee budget reserved per payment.
	MaxTxFee uint64

	// Address is the buyer's payment address.
	Address string

	// IsLedgerTx selects ledger settlement; when false the trade completes
	// on a plain confirmation.
	IsLedgerTx bool

	// MaxNegotiations caps the dialogues in flight at any time.
	MaxNegotiations int

	// SearchConstraints narrow the directory search.
	SearchConstraints map[string]string
}

// Strategy decides which proposals the buyer takes and derives the
// transaction terms from an accepted proposal.
type Strategy struct {
	cfg Config
}

// NewStrategy validates the config and creates a buying strategy.
func NewStrategy(cfg Config) (*Strategy, error) {
	if cfg.ServiceID == "" {
		return nil, errors.New("service id is mandatory")
	}

	if cfg.Address == "" {
		return nil, errors.New("buyer address is mandatory")
	}

	if cfg.MaxNegotiations <= 0 {
		cfg.MaxNegotiations = 1
	}

	return &Strategy{cfg: cfg}, nil
}

// IsLedgerTx reports whether trades settle on a ledger.
func (s *Strategy) IsLedgerTx() bool {
	return s.cfg.IsLedgerTx
}

// Query is the directory search query for matching sellers.
func (s *Strategy) Query() *directory.Query {
	return &directory.Query{
		ServiceID:   s.cfg.ServiceID,
		Constraints: s.cfg.SearchConstraints,
	}
}

// CFPQuery is the query sent in the opening call for proposal.
func (s *Strategy) CFPQuery() *negotiation.Query {
	return &negotiation.Query{
		ServiceID:   s.cfg.ServiceID,
		Constraints: s.cfg.SearchConstraints,
	}
}

// IsAcceptableProposal checks the proposal against the strategy bounds: the
// expected service, ledger and currency, a fresh nonce, and a unit price
// within budget.
func (s *Strategy) IsAcceptableProposal(proposal *negotiation.Proposal) bool {
	return proposal.ServiceID == s.cfg.ServiceID &&
		(!s.cfg.IsLedgerTx || proposal.LedgerID == s.cfg.LedgerID) &&
		proposal.Currency == s.cfg.Currency &&
		proposal.TxNonce != "" &&
		proposal.Quantity > 0 &&
		proposal.Price > 0 &&
		proposal.Price <= uint64(proposal.Quantity)*s.cfg.MaxUnitPrice
}

// IsAffordableProposal checks that the balance covers the price plus the fee
// budget. Off-ledger trades are always affordable.
func (s *Strategy) IsAffordableProposal(proposal *negotiation.Proposal, balance uint64) bool {
	if !s.cfg.IsLedgerTx {
		return true
	}

	return balance >= proposal.Price+s.cfg.MaxTxFee
}

// TermsFromProposal derives the buyer's transaction terms from an accepted
// proposal. The counterparty address initially holds the seller's agent
// address; it is replaced with the payment address announced in the seller's
// match-accept.
func (s *Strategy) TermsFromProposal(proposal *negotiation.Proposal, counterparty string) *negotiation.Terms {
	return &negotiation.Terms{
		LedgerID:            proposal.LedgerID,
		SenderAddress:       s.cfg.Address,
		CounterpartyAddress: counterparty,
		AmountByCurrency:    map[string]uint64{proposal.Currency: proposal.Price},
		QuantitiesByGood:    map[string]int{proposal.ServiceID: proposal.Quantity},
		FeeByCurrency:       map[string]uint64{proposal.Currency: s.cfg.MaxTxFee},
		Nonce:               proposal.TxNonce,
		SenderPayableTxFee:  true,
	}
}

// AcceptableCounterparties caps the found sellers to the negotiation slots
// still free.
func (s *Strategy) AcceptableCounterparties(found []*directory.Description, active int) []*directory.Description {
	free := s.cfg.MaxNegotiations - active
	if free <= 0 {
		return nil
	}

	if len(found) > free {
		found = found[:free]
	}

	return found
}
