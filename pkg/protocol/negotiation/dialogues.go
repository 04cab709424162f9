/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/spi/storage"
)

var logger = log.New("agora-framework/negotiation")

const (
	// StoreName is the namespace dialogue records are persisted under.
	StoreName = "negotiation_dialogues"

	defaultArchiveSize = 512
	defaultArchiveTTL  = time.Hour
)

// RoleResolver derives this agent's role from the opening message of a
// dialogue and whether this agent sent it.
type RoleResolver func(first *service.Message, selfInitiated bool) Role

// Dialogues is the registry of negotiation dialogues of one agent. It creates
// dialogues for outbound openings, resolves inbound messages to existing
// dialogues, collects end-state statistics and keeps a bounded archive of
// completed dialogues.
type Dialogues struct {
	self         string
	resolveRole  RoleResolver
	store        storage.Store
	archive      gcache.Cache
	stats        *stats
	mu           sync.RWMutex
	active       map[string]*Dialogue
}

// Opt is a dialogue registry option.
type Opt func(*options)

type options struct {
	archiveSize int
	archiveTTL  time.Duration
}

// WithArchiveSize bounds the completed-dialogue archive.
func WithArchiveSize(n int) Opt {
	return func(o *options) { o.archiveSize = n }
}

// WithArchiveTTL sets how long completed dialogues stay in the archive.
func WithArchiveTTL(ttl time.Duration) Opt {
	return func(o *options) { o.archiveTTL = ttl }
}

// NewDialogues creates a dialogue registry for the agent with the given
// address.
func NewDialogues(self string, resolveRole RoleResolver, prov storage.Provider, opts ...Opt) (*Dialogues, error) {
	if self == "" {
		return nil, fmt.Errorf("self address is mandatory")
	}

	if resolveRole == nil {
		return nil, fmt.Errorf("role resolver is mandatory")
	}

	store, err := prov.OpenStore(StoreName)
	if err != nil {
		return nil, fmt.Errorf("open dialogue store: %w", err)
	}

	o := &options{archiveSize: defaultArchiveSize, archiveTTL: defaultArchiveTTL}
	for _, opt := range opts {
		opt(o)
	}

	return &Dialogues{
		self:        self,
		resolveRole: resolveRole,
		store:       store,
		archive: gcache.New(o.archiveSize).
			LRU().
			Expiration(o.archiveTTL).
			Build(),
		stats:  newStats(),
		active: make(map[string]*Dialogue),
	}, nil
}

// Create opens a new self-initiated dialogue with the counterparty and builds
// its opening message. The caller is responsible for sending the message.
func (ds *Dialogues) Create(counterparty, performative string, body map[string]interface{}) (*service.Message, *Dialogue, error) {
	if !IsInitialPerformative(performative) {
		return nil, nil, fmt.Errorf("performative %s cannot open a dialogue", performative)
	}

	label := Label{
		ConversationRef: uuid.New().String(),
		Counterparty:    counterparty,
		Self:            ds.self,
	}

	msg := &service.Message{
		Protocol:        Name,
		Performative:    performative,
		MessageID:       service.StartingMessageID,
		Target:          service.StartingTarget,
		ConversationRef: label.ConversationRef,
		Sender:          ds.self,
		To:              counterparty,
		Body:            body,
	}

	d := newDialogue(label, ds.resolveRole(msg, true), true)
	d.lastOutgoingID = msg.MessageID
	d.append(msg)

	// persist before publishing: once the dialogue is in the active map,
	// reads and writes of its fields require its lock
	if err := ds.Save(d); err != nil {
		return nil, nil, err
	}

	ds.mu.Lock()
	ds.active[label.Key()] = d
	ds.mu.Unlock()

	return msg, d, nil
}

// Update resolves an inbound message to its dialogue, creating a new
// other-initiated dialogue when the message validly opens one. It returns
// ErrUnidentifiedDialogue when the message cannot be attributed to any
// dialogue.
func (ds *Dialogues) Update(msg *service.Message) (*Dialogue, error) {
	label := Label{
		ConversationRef: msg.ConversationRef,
		Counterparty:    msg.Sender,
		Self:            ds.self,
	}

	ds.mu.Lock()
	d, ok := ds.active[label.Key()]
	ds.mu.Unlock()

	if ok {
		return receive(d, msg)
	}

	if !IsInitialPerformative(msg.Performative) {
		return nil, fmt.Errorf("%w: no dialogue %s and performative %s cannot open one",
			ErrUnidentifiedDialogue, label, msg.Performative)
	}

	d = newDialogue(label, ds.resolveRole(msg, false), false)

	// not yet published, no lock needed
	if err := d.receive(msg); err != nil {
		return nil, err
	}

	ds.mu.Lock()
	existing, ok := ds.active[label.Key()]
	if !ok {
		ds.active[label.Key()] = d
	}
	ds.mu.Unlock()

	if ok {
		// another delivery opened the dialogue first; resolve against it
		return receive(existing, msg)
	}

	return d, nil
}

// receive appends the inbound message to the dialogue under its lock, so that
// concurrent replies built by settlement goroutines never mutate the message
// log at the same time.
func receive(d *Dialogue, msg *service.Message) (*Dialogue, error) {
	d.Lock()
	defer d.Unlock()

	if err := d.receive(msg); err != nil {
		return nil, err
	}

	return d, nil
}

// Get returns the active dialogue with the given label, or nil.
func (ds *Dialogues) Get(label Label) *Dialogue {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.active[label.Key()]
}

// ActiveCount returns the number of dialogues still in progress.
func (ds *Dialogues) ActiveCount() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.active)
}

// Save persists the current protocol state of the dialogue.
func (ds *Dialogues) Save(d *Dialogue) error {
	record, err := json.Marshal(newDialogueRecord(d))
	if err != nil {
		return fmt.Errorf("marshal dialogue record: %w", err)
	}

	if err := ds.store.Put(d.Label().Key(), record); err != nil {
		return fmt.Errorf("persist dialogue %s: %w", d.Label(), err)
	}

	return nil
}

// Complete records the end state of the dialogue, removes it from the active
// set and moves it to the bounded archive. A nil end state marks an aborted
// dialogue: it is archived without contributing to the statistics.
func (ds *Dialogues) Complete(d *Dialogue, endState *EndState) error {
	if endState != nil {
		d.setEnded(*endState)
		ds.stats.add(*endState, d.SelfInitiated())
	}

	ds.mu.Lock()
	delete(ds.active, d.Label().Key())
	ds.mu.Unlock()

	if err := ds.archive.Set(d.Label().Key(), d); err != nil {
		logger.Warnf("failed to archive dialogue %s: %v", d.Label(), err)
	}

	return ds.Save(d)
}

// Archived returns the completed dialogue with the given label if it is still
// in the archive.
func (ds *Dialogues) Archived(label Label) *Dialogue {
	v, err := ds.archive.Get(label.Key())
	if err != nil {
		return nil
	}

	d, ok := v.(*Dialogue)
	if !ok {
		return nil
	}

	return d
}

// Stats returns a snapshot of the end-state statistics.
func (ds *Dialogues) Stats() StatsSnapshot {
	return ds.stats.snapshot()
}

// dialogueRecord is the persisted form of a dialogue's control state. The
// message history is not persisted.
type dialogueRecord struct {
	Label         Label  `json:"label"`
	Role          Role   `json:"role"`
	SelfInitiated bool   `json:"self_initiated"`
	State         string `json:"state"`
	Ended         bool   `json:"ended"`
	EndState      string `json:"end_state,omitempty"`
}

func newDialogueRecord(d *Dialogue) *dialogueRecord {
	record := &dialogueRecord{
		Label:         d.Label(),
		Role:          d.Role(),
		SelfInitiated: d.SelfInitiated(),
		State:         d.State(),
	}

	if endState, ended := d.Ended(); ended {
		record.Ended = true
		record.EndState = endState.String()
	}

	return record
}
