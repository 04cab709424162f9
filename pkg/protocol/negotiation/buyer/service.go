/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package buyer implements the buying side of the negotiation protocol: it
// searches the directory for sellers, negotiates proposals within the
// strategy bounds, pays through the payment coordinator and collects the
// purchased data.
package buyer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/pkg/directory"
	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
	"github.com/agoralab/agora-framework-go/spi/storage"
)

var logger = log.New("agora-framework/negotiation/buyer")

// ServiceName of the buyer protocol service.
const ServiceName = "negotiation-buyer"

// Dialogue states of the buying side.
const (
	stateAwaitingProposal    = "awaiting_proposal"
	stateAwaitingMatchAccept = "awaiting_match_accept"
	statePaymentPending      = "payment_pending"
	stateAwaitingData        = "awaiting_data"
	stateFulfilled           = "fulfilled"
	stateAborted             = "aborted"
)

const (
	paymentTimeout = 30 * time.Second
	searchTimeout  = 10 * time.Second
)

// provider contains the dependencies for the buyer service.
type provider interface {
	OutboundDispatcher() dispatcher.Outbound
	StorageProvider() storage.Provider
	LedgerGateway() ledger.Gateway
	LedgerSigner() ledger.Signer
	Directory() directory.Service
	EndpointRegistry() dispatcher.EndpointRegistry
}

// Service is the buyer protocol service.
type Service struct {
	service.MsgEvent

	dialogues   *negotiation.Dialogues
	outbound    dispatcher.Outbound
	gateway     ledger.Gateway
	signer      ledger.Signer
	dir         directory.Service
	endpoints   dispatcher.EndpointRegistry
	strategy    *Strategy
	coordinator *Coordinator

	mu      sync.Mutex
	balance uint64
}

// Option configures the buyer service.
type Option func(*options)

type options struct {
	maxProcessing time.Duration
	dialogueOpts  []negotiation.Opt
}

// WithMaxProcessingTime bounds how long one payment may occupy the processing
// slot before it is timed out and re-queued.
func WithMaxProcessingTime(d time.Duration) Option {
	return func(o *options) { o.maxProcessing = d }
}

// WithDialogueOpts passes options through to the dialogue registry.
func WithDialogueOpts(opts ...negotiation.Opt) Option {
	return func(o *options) { o.dialogueOpts = append(o.dialogueOpts, opts...) }
}

// New creates the buyer protocol service.
func New(prov provider, strategy *Strategy, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	dialogues, err := negotiation.NewDialogues(strategy.cfg.Address, negotiation.RoleFromOpening,
		prov.StorageProvider(), o.dialogueOpts...)
	if err != nil {
		return nil, fmt.Errorf("buyer service: %w", err)
	}

	s := &Service{
		dialogues: dialogues,
		outbound:  prov.OutboundDispatcher(),
		gateway:   prov.LedgerGateway(),
		signer:    prov.LedgerSigner(),
		dir:       prov.Directory(),
		endpoints: prov.EndpointRegistry(),
		strategy:  strategy,
	}
	s.coordinator = NewCoordinator(o.maxProcessing, s.processPayment)

	return s, nil
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

// Coordinator exposes the payment coordinator.
func (s *Service) Coordinator() *Coordinator {
	return s.coordinator
}

// Start checks the agent's funding. On a ledger-settled strategy a zero
// balance is an error: the agent cannot trade and should deactivate.
func (s *Service) Start(ctx context.Context) error {
	if !s.strategy.IsLedgerTx() {
		return nil
	}

	balance, err := s.gateway.GetBalance(ctx, s.strategy.cfg.LedgerID, s.strategy.cfg.Address)
	if err != nil {
		return fmt.Errorf("buyer funding check: %w", err)
	}

	if balance == 0 {
		return fmt.Errorf("buyer %s has no funds on ledger %s", s.strategy.cfg.Address, s.strategy.cfg.LedgerID)
	}

	s.mu.Lock()
	s.balance = balance
	s.mu.Unlock()

	logger.Infof("starting balance on ledger %s: %d", s.strategy.cfg.LedgerID, balance)

	return nil
}

// Tick advances the payment coordinator and, while no payment is pending,
// searches the directory for sellers to negotiate with.
func (s *Service) Tick(interval time.Duration) {
	s.coordinator.Tick(interval)

	if pending := s.coordinator.PendingCount(); pending > 0 {
		logger.Debugf("%d payments pending, skipping search", pending)
		return
	}

	if s.dialogues.ActiveCount() >= s.strategy.cfg.MaxNegotiations {
		return
	}

	s.search()
}

// search finds sellers in the directory and opens a negotiation with each,
// up to the free negotiation slots.
func (s *Service) search() {
	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	found, err := s.dir.SearchServices(ctx, s.strategy.Query())
	if err != nil {
		logger.Warnf("directory search failed: %v", err)
		return
	}

	counterparties := s.strategy.AcceptableCounterparties(found, s.dialogues.ActiveCount())

	for _, desc := range counterparties {
		if s.endpoints != nil {
			s.endpoints.SetEndpoint(desc.Address, desc.Endpoint)
		}

		msg, d, err := s.dialogues.Create(desc.Address, negotiation.CFPMsgType, map[string]interface{}{
			"query": s.strategy.CFPQuery(),
		})
		if err != nil {
			logger.Errorf("failed to open dialogue with %s: %v", desc.Address, err)
			continue
		}

		d.Lock()
		d.SetState(stateAwaitingProposal)

		if err := s.dialogues.Save(d); err != nil {
			logger.Errorf("failed to persist dialogue %s: %v", d.Label(), err)
		}
		d.Unlock()

		logger.Infof("sending cfp for %s to %s", s.strategy.cfg.ServiceID, desc.Address)

		if err := s.outbound.Send(msg); err != nil {
			logger.Errorf("failed to send cfp to %s: %v", desc.Address, err)
		}
	}
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
	case negotiation.ProposeMsgType:
		err = s.handlePropose(d, msg)
	case negotiation.DeclineMsgType:
		err = s.handleDecline(d, msg)
	case negotiation.MatchAcceptMsgType:
		err = s.handleMatchAccept(d, msg)
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

// handlePropose accepts a proposal within the strategy bounds and declines
// everything else.
func (s *Service) handlePropose(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingProposal {
		logger.Warnf("unexpected propose in dialogue %s, ignoring", d.Label())
		return nil
	}

	payload := &negotiation.ProposePayload{}
	if err := msg.Decode(payload); err != nil {
		logger.Warnf("received propose with invalid payload in dialogue %s: %v", d.Label(), err)
		return nil
	}

	proposal := &payload.Proposal

	if !s.strategy.IsAcceptableProposal(proposal) || !s.strategy.IsAffordableProposal(proposal, s.currentBalance()) {
		logger.Infof("declining proposal from %s: %d %s for %d rows",
			msg.Sender, proposal.Price, proposal.Currency, proposal.Quantity)

		return s.declineAndComplete(d, msg, negotiation.EndStateDeclinedProposal)
	}

	if err := d.SetTerms(s.strategy.TermsFromProposal(proposal, msg.Sender)); err != nil {
		return fmt.Errorf("attach terms to dialogue %s: %w", d.Label(), err)
	}

	logger.Infof("accepting proposal from %s: %d %s for %d rows",
		msg.Sender, proposal.Price, proposal.Currency, proposal.Quantity)

	return s.replyAndSave(d, msg, negotiation.AcceptMsgType, nil, stateAwaitingMatchAccept)
}

// handleDecline ends the dialogue; the outcome depends on which of our
// messages was declined.
func (s *Service) handleDecline(d *negotiation.Dialogue, msg *service.Message) error {
	target := d.GetMessageByID(msg.Target)
	if target == nil {
		logger.Warnf("decline with unknown target in dialogue %s, ignoring", d.Label())
		return nil
	}

	var endState negotiation.EndState

	switch target.Performative {
	case negotiation.CFPMsgType:
		endState = negotiation.EndStateDeclinedProposal
	case negotiation.AcceptMsgType:
		endState = negotiation.EndStateDeclinedAccept
	default:
		logger.Warnf("decline targeting %s in dialogue %s, ignoring", target.Performative, d.Label())
		return nil
	}

	logger.Infof("counterparty %s declined our %s in dialogue %s", msg.Sender, target.Performative, d.Label())

	d.SetState(stateAborted)
	s.emit(d, msg, nil)

	return s.dialogues.Complete(d, &endState)
}

// handleMatchAccept queues the payment on a ledger-settled trade; off-ledger
// it confirms completion right away.
func (s *Service) handleMatchAccept(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingMatchAccept {
		logger.Warnf("unexpected match-accept in dialogue %s, ignoring", d.Label())
		return nil
	}

	if !s.strategy.IsLedgerTx() {
		return s.replyAndSave(d, msg, negotiation.InformMsgType, map[string]interface{}{
			"info": map[string]string{negotiation.InfoKeyDone: "Done"},
		}, stateAwaitingData)
	}

	payload := &negotiation.InformPayload{}
	if err := msg.Decode(payload); err != nil {
		logger.Warnf("received match-accept with invalid payload in dialogue %s: %v", d.Label(), err)
		return nil
	}

	address, ok := payload.Info[negotiation.InfoKeyAddress]
	if !ok || address == "" {
		logger.Warnf("match-accept without payment address in dialogue %s, ignoring", d.Label())
		return nil
	}

	if err := d.UpdateCounterpartyAddress(address); err != nil {
		return fmt.Errorf("update payment address in dialogue %s: %w", d.Label(), err)
	}

	d.SetState(statePaymentPending)
	s.emit(d, msg, nil)

	if err := s.dialogues.Save(d); err != nil {
		return err
	}

	s.coordinator.Enqueue(d)

	return nil
}

// handleInform completes the trade with the delivered data.
func (s *Service) handleInform(d *negotiation.Dialogue, msg *service.Message) error {
	if d.State() != stateAwaitingData {
		logger.Warnf("unexpected inform in dialogue %s, ignoring", d.Label())
		return nil
	}

	payload := &negotiation.DataPayload{}
	if err := msg.Decode(payload); err != nil {
		logger.Warnf("received inform with invalid payload in dialogue %s: %v", d.Label(), err)
		return nil
	}

	if len(payload.Data) == 0 {
		logger.Warnf("received no data in dialogue %s", d.Label())
		return nil
	}

	logger.Infof("received %d data rows from %s in dialogue %s", len(payload.Data), msg.Sender, d.Label())

	d.SetState(stateFulfilled)
	s.emit(d, msg, map[string]interface{}{"data": payload.Data})

	endState := negotiation.EndStateSuccessful

	return s.dialogues.Complete(d, &endState)
}

// processPayment runs the payment pipeline for the dialogue occupying the
// coordinator slot: build, sign and submit the transfer, wait for the
// receipt, then inform the seller of the digest. Failures re-queue the
// payment for another attempt.
func (s *Service) processPayment(d *negotiation.Dialogue, attempt uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), paymentTimeout)
	defer cancel()

	d.Lock()
	defer d.Unlock()

	terms, err := d.Terms()
	if err != nil {
		logger.Errorf("payment for dialogue %s: %v", d.Label(), err)
		s.coordinator.FailProcessing(d, attempt)

		return
	}

	digest, err := s.submitPayment(ctx, terms)
	if err != nil {
		logger.Warnf("payment for dialogue %s failed: %v", d.Label(), err)
		s.coordinator.FailProcessing(d, attempt)

		return
	}

	reply, err := d.Reply(negotiation.InformMsgType, nil, map[string]interface{}{
		"info": map[string]string{negotiation.InfoKeyTransactionDigest: digest.Body},
	})
	if err != nil {
		logger.Errorf("payment for dialogue %s: %v", d.Label(), err)
		s.coordinator.FailProcessing(d, attempt)

		return
	}

	if err := s.outbound.Send(reply); err != nil {
		logger.Errorf("failed to send transaction digest in dialogue %s: %v", d.Label(), err)
		s.coordinator.FailProcessing(d, attempt)

		return
	}

	d.SetState(stateAwaitingData)
	s.emit(d, reply, nil)

	if err := s.dialogues.Save(d); err != nil {
		logger.Errorf("failed to persist dialogue %s: %v", d.Label(), err)
	}

	s.debit(terms.SenderPayableAmount())
	s.coordinator.FinishProcessing(d, attempt)

	logger.Infof("payment %s settled, informed seller in dialogue %s", digest.Body, d.Label())
}

// submitPayment executes the transfer and returns its digest once settled.
func (s *Service) submitPayment(ctx context.Context, terms *negotiation.Terms) (*ledger.Digest, error) {
	raw, err := s.gateway.GetRawTransaction(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	signed, err := s.signer.SignTransaction(ctx, raw, terms)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	digest, err := s.gateway.SendSignedTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("submit transaction: %w", err)
	}

	receipt, err := s.gateway.GetTransactionReceipt(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}

	if !ledger.IsSettled(receipt) {
		return nil, fmt.Errorf("transaction %s did not settle", digest.Body)
	}

	return digest, nil
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
	s.emit(d, msg, nil)

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
	s.emit(d, msg, nil)

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

func (s *Service) currentBalance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balance
}

func (s *Service) debit(amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balance >= amount {
		s.balance -= amount
		return
	}

	s.balance = 0
}

// emit notifies registered observers of a state transition.
func (s *Service) emit(d *negotiation.Dialogue, msg *service.Message, props map[string]interface{}) {
	if props == nil {
		props = map[string]interface{}{}
	}

	props["conversation_ref"] = d.Label().ConversationRef

	for _, ch := range s.MsgEvents() {
		select {
		case ch <- service.StateMsg{
			ProtocolName: negotiation.Name,
			Type:         service.PostState,
			StateID:      d.State(),
			Msg:          msg,
			Properties:   props,
		}:
		default:
			logger.Warnf("state event channel is full, dropping event")
		}
	}
}
