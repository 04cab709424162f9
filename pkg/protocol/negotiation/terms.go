/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import "errors"

// Transaction terms errors.
var (
	// ErrTermsAlreadySet is returned when terms are attached to a dialogue
	// that already carries terms.
	ErrTermsAlreadySet = errors.New("dialogue terms already set")

	// ErrTermsNotSet is returned when terms are read from a dialogue that
	// does not carry terms yet.
	ErrTermsNotSet = errors.New("dialogue terms not set")
)

// Terms captures the agreed transaction terms of a negotiation. The sender is
// the party that created the terms; for a payment the counterparty address is
// the payee. All fields except CounterpartyAddress are immutable once the
// terms are attached to a dialogue.
type Terms struct {
	LedgerID            string            `json:"ledger_id"`
	SenderAddress       string            `json:"sender_address"`
	CounterpartyAddress string            `json:"counterparty_address"`
	AmountByCurrency    map[string]uint64 `json:"amount_by_currency_id"`
	QuantitiesByGood    map[string]int    `json:"quantities_by_good_id"`
	FeeByCurrency       map[string]uint64 `json:"fee_by_currency_id"`
	Nonce               string            `json:"nonce"`
	SenderPayableTxFee  bool              `json:"is_sender_payable_tx_fee"`
}

// Currency returns the currency id of the single-currency terms, or "" when
// no amount is present.
func (t *Terms) Currency() string {
	for currency := range t.AmountByCurrency {
		return currency
	}

	return ""
}

// Amount returns the transfer amount in the terms currency.
func (t *Terms) Amount() uint64 {
	return t.AmountByCurrency[t.Currency()]
}

// Fee returns the transaction fee in the terms currency.
func (t *Terms) Fee() uint64 {
	return t.FeeByCurrency[t.Currency()]
}

// SenderPayableAmount is the total the terms sender has to fund: the transfer
// amount plus the fee when the sender covers it.
func (t *Terms) SenderPayableAmount() uint64 {
	if t.SenderPayableTxFee {
		return t.Amount() + t.Fee()
	}

	return t.Amount()
}

// CounterpartyPayableAmount is the total payable by the terms counterparty.
func (t *Terms) CounterpartyPayableAmount() uint64 {
	if t.SenderPayableTxFee {
		return t.Amount()
	}

	return t.Amount() + t.Fee()
}
