/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package buyer

import (
	"sync"
	"time"

	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

// defaultMaxProcessingTime bounds how long one payment may occupy the
// processing slot before it is timed out and re-queued.
const defaultMaxProcessingTime = 120 * time.Second

// Coordinator serializes the buyer's payments: dialogues waiting for payment
// form a FIFO queue and at most one occupies the processing slot at a time.
// Every slot occupancy carries an attempt token; a payment exceeding the
// processing budget is re-queued at the tail and its token retired, so a late
// completion of the old attempt can never free a slot it no longer owns.
// Failed payments are re-queued and retried until they settle.
type Coordinator struct {
	mu sync.Mutex

	waiting        []*negotiation.Dialogue
	processing     *negotiation.Dialogue
	processingTime time.Duration
	maxProcessing  time.Duration
	attempt        uint64

	submit func(*negotiation.Dialogue, uint64)
}

// NewCoordinator creates a payment coordinator. submit is invoked on its own
// goroutine with the dialogue entering the processing slot and the token of
// the attempt, which the pipeline passes back to FinishProcessing or
// FailProcessing.
func NewCoordinator(maxProcessing time.Duration, submit func(*negotiation.Dialogue, uint64)) *Coordinator {
	if maxProcessing <= 0 {
		maxProcessing = defaultMaxProcessingTime
	}

	return &Coordinator{
		maxProcessing: maxProcessing,
		submit:        submit,
	}
}

// Enqueue appends the dialogue to the waiting queue.
func (c *Coordinator) Enqueue(d *negotiation.Dialogue) {
	c.mu.Lock()
	c.waiting = append(c.waiting, d)
	c.mu.Unlock()

	logger.Infof("queued payment for dialogue %s", d.Label())
}

// Tick advances the coordinator by one agent tick. A busy slot accrues
// processing time and is timed out once over budget; a free slot picks up the
// head of the queue.
func (c *Coordinator) Tick(interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing != nil {
		c.processingTime += interval

		if c.processingTime >= c.maxProcessing {
			c.timeoutProcessing()
		}

		return
	}

	if len(c.waiting) == 0 {
		return
	}

	c.startProcessing()
}

// timeoutProcessing re-queues the slotted dialogue at the tail and retires
// its attempt token. Caller must hold the lock.
func (c *Coordinator) timeoutProcessing() {
	d := c.processing

	logger.Warnf("payment processing for dialogue %s timed out, re-queueing", d.Label())

	c.waiting = append(c.waiting, d)
	c.processingTime = 0
	c.processing = nil
}

// startProcessing moves the queue head into the slot under a fresh attempt
// token. Caller must hold the lock.
func (c *Coordinator) startProcessing() {
	d := c.waiting[0]
	c.waiting = c.waiting[1:]

	c.processing = d
	c.processingTime = 0
	c.attempt++

	logger.Infof("processing payment for dialogue %s", d.Label())

	go c.submit(d, c.attempt)
}

// FinishProcessing releases the slot after a settled payment. A finish
// carrying a retired token is dropped: its attempt was timed out and the slot
// belongs to a later attempt, or to nobody.
func (c *Coordinator) FinishProcessing(d *negotiation.Dialogue, attempt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing == nil || attempt != c.attempt {
		logger.Debugf("dropping late completion of payment attempt %d for dialogue %s", attempt, d.Label())
		return
	}

	c.processingTime = 0
	c.processing = nil
}

// FailProcessing re-queues the dialogue for another attempt and releases the
// slot. A failure carrying a retired token is dropped: the dialogue was
// re-queued when its attempt timed out.
func (c *Coordinator) FailProcessing(d *negotiation.Dialogue, attempt uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing == nil || attempt != c.attempt {
		logger.Debugf("dropping late failure of payment attempt %d for dialogue %s", attempt, d.Label())
		return
	}

	logger.Warnf("payment for dialogue %s failed, re-queueing", d.Label())

	c.waiting = append(c.waiting, d)
	c.processingTime = 0
	c.processing = nil
}

// Busy reports whether a payment currently occupies the processing slot.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.processing != nil
}

// PendingCount returns the number of queued payments, the slot included.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.waiting)
	if c.processing != nil {
		n++
	}

	return n
}
