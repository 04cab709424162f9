/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package seller implements the selling side of the negotiation protocol: it
// answers calls for proposal, hands out its payment address on acceptance and
// releases the data only once the payment is settled on the ledger.
package seller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
	"github.com/agoralab/agora-framework-go/spi/storage"
)

var logger = log.New("agora-framework/negotiation/seller")

// ServiceName of the seller protocol service.
const ServiceName = "negotiation-seller"

// Dialogue states of the selling side.
const (
	stateIdle               = ""
	stateAwaitingResponse   = "awaiting_proposal_response"
	stateAwaitingPayment    = "awaiting_payment"
	stateAwaitingSettlement = "awaiting_settlement_confirmation"
	stateFulfilled          = "fulfilled"
	stateAborted            = "aborted"
)

const settlementTimeout = 30 * time.Second

// provider contains the dependencies for the seller service.
type provider interface {
	OutboundDispatcher() dispatcher.Outbound
	StorageProvider() storage.Provider
	LedgerGateway() ledger.Gateway
}

// Service is the seller protocol service.
type Service struct {
	service.MsgEvent

	dialogues *negotiation.Dialogues
	outbound  dispatcher.Outbound
	gateway   ledger.Gateway
	strategy  *Strategy
}

// New creates the seller protocol service for the agent with the given
// address.
func New(prov provider, strategy *Strategy, opts ...negotiation.Opt) (*Service, error) {
	dialogues, err := negotiation.NewDialogues(strategy.cfg.Address, negotiation.RoleFromOpening,
		prov.StorageProvider(), opts...)
	if err != nil {
		return nil, fmt.Errorf("seller service: %w", err)
	}

	return &Service{
		dialogues: dialogues,
		outbound:  prov.OutboundDispatcher(),
		gateway:   prov.LedgerGateway(),
		strategy:  strategy,
	}, nil
}

// Name returns the service name.
func (s *Service) Name() string {
	return ServiceName
}

// Accept checks whether the service handles messages of the given protocol.
func (s *Service) Accept(protocol string) bool {
	return protocol == negotiation.Name
}

// Dialogues exposes the dialogue registry, e.g. for the controller API.
func (s *Service) Dialogues() *negotiation.Dialogues {
	return s.dialogues
}

// HandleInbound processes an inbound negotiation message.
func (s *Service) HandleInbound(msg *service.Message) (string, error) {
	d, err := s.dialogues.Update(msg)
	if errors.Is(err, negotiation.ErrUnidentifiedDialogue) {
		logger.Warnf("received invalid message: %v", err)
		s.sendErrorReply(msg, err)

		return "", nil
	}

	if err != nil {
		return "", err
	}

	d.Lock()
	defer d.Unlock()

	switch msg.Performative {
	case negotiation.CFPMsgType:
		err = s.handleCFP(d, msg)
	case negotiation.DeclineMsgType:
		err = s.handleDecline(d, msg)
	case negotiation.AcceptMsgType:
		err = s.handleAccept(d, msg)
	case negotiation.InformMsgType:
		err = s.handleInform(d, msg)
	default:
		logger.Warnf("cannot handle performative %s in dialogue %s", msg.Performative, d.Label())
	}

	if err != nil {
		return "", err
	}

	return d.Label().ConversationRef, nil
}

// handleCFP answers a call for proposal with a proposal when the queried
// service matches the supply, with a decline otherwise.
func (s *Service) handleCFP(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateIdle {
		logger.Warnf("unexpected cfp in dialogue %s, ignoring", d.Label())
		return nil
	}

	payload := &negotiation.CFPPayload{}
	if err := msg.Decode(payload); err != nil {
		logger.Warnf("received cfp with invalid payload in dialogue %s: %v", d.Label(), err)
		return nil
	}

	if !s.strategy.IsMatchingSupply(&payload.Query) {
		logger.Infof("declining cfp for %s from %s", payload.Query.ServiceID, msg.Sender)

		return s.declineAndComplete(d, msg, negotiation.EndStateDeclinedProposal)
	}

	proposal, terms, data, err := s.strategy.GenerateProposalTermsAndData(&payload.Query, msg.Sender)
	if err != nil {
		logger.Errorf("failed to generate proposal for dialogue %s: %v", d.Label(), err)

		return s.declineAndComplete(d, msg, negotiation.EndStateDeclinedProposal)
	}

	if err := d.SetTerms(terms); err != nil {
		return fmt.Errorf("attach terms to dialogue %s: %w", d.Label(), err)
	}

	d.SetDataForSale(data)

	logger.Infof("sending proposal to %s: %d rows of %s for %d %s",
		msg.Sender, proposal.Quantity, proposal.ServiceID, proposal.Price, proposal.Currency)

	return s.replyAndSave(d, msg, negotiation.ProposeMsgType,
		map[string]interface{}{"proposal": proposal}, stateAwaitingResponse)
}

// handleDecline records the counterparty walking away from the proposal.
func (s *Service) handleDecline(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingResponse {
		logger.Warnf("unexpected decline in dialogue %s, ignoring", d.Label())
		return nil
	}

	logger.Infof("proposal declined by %s in dialogue %s", msg.Sender, d.Label())

	d.SetState(stateAborted)
	s.emit(d, msg)

	endState := negotiation.EndStateDeclinedProposal

	return s.dialogues.Complete(d, &endState)
}

// handleAccept confirms the accept and hands out the payment address.
func (s *Service) handleAccept(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingResponse {
		logger.Warnf("unexpected accept in dialogue %s, ignoring", d.Label())
		return nil
	}

	terms, err := d.Terms()
	if err != nil {
		return fmt.Errorf("accept in dialogue %s: %w", d.Label(), err)
	}

	logger.Infof("proposal accepted by %s, sending payment address", msg.Sender)

	info := map[string]string{negotiation.InfoKeyAddress: terms.SenderAddress}

	return s.replyAndSave(d, msg, negotiation.MatchAcceptMsgType,
		map[string]interface{}{"info": info}, stateAwaitingPayment)
}

// handleInform completes the trade: on ledger settlement it verifies the
// referenced transaction before releasing the data, off-ledger a plain done
// confirmation suffices.
func (s *Service) handleInform(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingPayment {
		logger.Warnf("unexpected inform in dialogue %s, ignoring", d.Label())
		return nil
	}

	payload := &negotiation.InformPayload{}
	if err := msg.Decode(payload); err != nil {
		logger.Warnf("received inform with invalid payload in dialogue %s: %v", d.Label(), err)
		return nil
	}

	if digest, ok := payload.Info[negotiation.InfoKeyTransactionDigest]; ok && s.strategy.IsLedgerTx() {
		logger.Infof("checking settlement of transaction %s for dialogue %s", digest, d.Label())

		d.SetState(stateAwaitingSettlement)

		if err := s.dialogues.Save(d); err != nil {
			return err
		}

		go s.verifySettlement(d, msg, digest)

		return nil
	}

	if _, ok := payload.Info[negotiation.InfoKeyDone]; ok && !s.strategy.IsLedgerTx() {
		return s.deliverData(d, msg)
	}

	logger.Warnf("received inform without expected payment confirmation in dialogue %s", d.Label())

	return nil
}

// verifySettlement fetches the receipt of the referenced transaction and
// releases the data only when the payment is settled and matches the terms.
// A failed verification aborts the dialogue without notifying the
// counterparty.
func (s *Service) verifySettlement(d *negotiation.Dialogue, msg *service.Message, digest string) {
	ctx, cancel := context.WithTimeout(context.Background(), settlementTimeout)
	defer cancel()

	d.Lock()
	defer d.Unlock()

	terms, err := d.Terms()
	if err != nil {
		logger.Errorf("settlement check in dialogue %s: %v", d.Label(), err)
		return
	}

	receipt, err := s.gateway.GetTransactionReceipt(ctx, &ledger.Digest{LedgerID: terms.LedgerID, Body: digest})
	if err != nil {
		logger.Warnf("failed to fetch receipt for transaction %s: %v", digest, err)
		s.abort(d, msg)

		return
	}

	if !ledger.IsSettled(receipt) || !ledger.IsValid(receipt, terms) {
		logger.Warnf("transaction %s is not settled or does not match the terms of dialogue %s, aborting",
			digest, d.Label())
		s.abort(d, msg)

		return
	}

	logger.Infof("transaction %s confirmed, sending data to %s", digest, msg.Sender)

	if err := s.deliverData(d, msg); err != nil {
		logger.Errorf("failed to deliver data in dialogue %s: %v", d.Label(), err)
	}
}

// deliverData sends the reserved data and completes the dialogue.
func (s *Service) deliverData(d *negotiation.Dialogue, msg *service.Message) error {
	reply, err := d.Reply(negotiation.InformMsgType, msg,
		map[string]interface{}{"data": d.DataForSale()})
	if err != nil {
		return err
	}

	if err := s.outbound.Send(reply); err != nil {
		return err
	}

	d.SetState(stateFulfilled)
	s.emit(d, msg)

	endState := negotiation.EndStateSuccessful

	return s.dialogues.Complete(d, &endState)
}

func (s *Service) abort(d *negotiation.Dialogue, msg *service.Message) {
	d.SetState(stateAborted)
	s.emit(d, msg)

	if err := s.dialogues.Complete(d, nil); err != nil {
		logger.Errorf("failed to complete dialogue %s: %v", d.Label(), err)
	}
}

func (s *Service) declineAndComplete(d *negotiation.Dialogue, msg *service.Message,
	endState negotiation.EndState) error {
	reply, err := d.Reply(negotiation.DeclineMsgType, msg, nil)
	if err != nil {
		return err
	}

	if err := s.outbound.Send(reply); err != nil {
		return err
	}

	d.SetState(stateAborted)
	s.emit(d, msg)

	return s.dialogues.Complete(d, &endState)
}

func (s *Service) replyAndSave(d *negotiation.Dialogue, msg *service.Message,
	performative string, body map[string]interface{}, state string) error {
	reply, err := d.Reply(performative, msg, body)
	if err != nil {
		return err
	}

	if err := s.outbound.Send(reply); err != nil {
		return err
	}

	d.SetState(state)
	s.emit(d, msg)

	return s.dialogues.Save(d)
}

// sendErrorReply answers a message that could not be attributed to a dialogue
// with a dialogue-less error envelope.
func (s *Service) sendErrorReply(msg *service.Message, cause error) {
	reply := negotiation.NewErrorReply(msg, "unidentified_dialogue", cause.Error())

	if err := s.outbound.Send(reply); err != nil {
		logger.Errorf("failed to send error reply to %s: %v", msg.Sender, err)
	}
}

// emit notifies registered observers of a state transition.
func (s *Service) emit(d *negotiation.Dialogue, msg *service.Message) {
	for _, ch := range s.MsgEvents() {
		select {
		case ch <- service.StateMsg{
			ProtocolName: negotiation.Name,
			Type:         service.PostState,
			StateID:      d.State(),
			Msg:          msg,
			Properties:   map[string]interface{}{"conversation_ref": d.Label().ConversationRef},
		}:
		default:
			logger.Warnf("state event channel is full, dropping event")
		}
	}
}
