/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package seller

import (
	"errors"

	"github.com/google/uuid"

	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// Config holds the selling strategy parameters.
type Config struct {
	// ServiceID is the type of data on offer.
	ServiceID string

	// LedgerID names the ledger payments settle on. Ignored when
	// IsLedgerTx is false.
	LedgerID string

	// Currency payments are denominated in.
	Currency string

	// UnitPrice is the price per data row.
	UnitPrice uint64

	// Address is the seller's payment address.
	Address string

	// IsLedgerTx selects ledger settlement; when false the trade completes
	// on a plain confirmation.
	IsLedgerTx bool

	// DataSource supplies the data rows to sell. Called once per proposal.
	DataSource func() map[string]string
}

// Strategy decides which queries the seller serves and generates the
// proposal, terms and data reserved for a dialogue.
type Strategy struct {
	cfg Config
}

// NewStrategy validates the config and creates a selling strategy.
func NewStrategy(cfg Config) (*Strategy, error) {
	if cfg.ServiceID == "" {
		return nil, errors.New("service id is mandatory")
	}

	if cfg.Address == "" {
		return nil, errors.New("seller address is mandatory")
	}

	if cfg.DataSource == nil {
		return nil, errors.New("data source is mandatory")
	}

	return &Strategy{cfg: cfg}, nil
}

// IsMatchingSupply reports whether the seller serves the queried service.
func (s *Strategy) IsMatchingSupply(query *negotiation.Query) bool {
	return query.ServiceID == s.cfg.ServiceID
}

// IsLedgerTx reports whether trades settle on a ledger.
func (s *Strategy) IsLedgerTx() bool {
	return s.cfg.IsLedgerTx
}

// GenerateProposalTermsAndData builds the proposal for the counterparty, the
// matching transaction terms and the data rows reserved for the trade. Each
// proposal carries a fresh nonce so settled payments bind to one dialogue.
func (s *Strategy) GenerateProposalTermsAndData(_ *negotiation.Query, counterparty string,
) (*negotiation.Proposal, *negotiation.Terms, map[string]string, error) {
	data := s.cfg.DataSource()
	if len(data) == 0 {
		return nil, nil, nil, errors.New("no data available for sale")
	}

	quantity := len(data)
	price := s.cfg.UnitPrice * uint64(quantity)
	nonce := uuid.New().String()

	proposal := &negotiation.Proposal{
		ServiceID: s.cfg.ServiceID,
		LedgerID:  s.cfg.LedgerID,
		Currency:  s.cfg.Currency,
		Price:     price,
		Quantity:  quantity,
		TxNonce:   nonce,
	}

	terms := &negotiation.Terms{
		LedgerID:            s.cfg.LedgerID,
		SenderAddress:       s.cfg.Address,
		CounterpartyAddress: counterparty,
		AmountByCurrency:    map[string]uint64{s.cfg.Currency: price},
		QuantitiesByGood:    map[string]int{s.cfg.ServiceID: quantity},
		FeeByCurrency:       map[string]uint64{},
		Nonce:               nonce,
	}

	return proposal, terms, data, nil
}
