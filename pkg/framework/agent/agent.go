/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent runs a trading agent: it starts the inbound transports,
// registers the agent's service in the directory and drives the proactive
// behaviours with a periodic tick.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
	"github.com/agoralab/agora-framework-go/pkg/directory"
)

var logger = log.New("agora-framework/agent")

const defaultTickInterval = time.Second

// Behaviour is ticked periodically while the agent runs.
type Behaviour interface {
	Tick(interval time.Duration)
}

// Starter is started once before the agent accepts traffic. A start error is
// fatal: the agent does not come up.
type Starter interface {
	Start(ctx context.Context) error
}

// Agent hosts protocol services and drives them.
type Agent struct {
	services     []dispatcher.MessageService
	book         *dispatcher.AddressBook
	inbound      []transport.InboundTransport
	behaviours   []Behaviour
	starters     []Starter
	registrar    *directory.Registrar
	tickInterval time.Duration

	stopOnce sync.Once
	done     chan struct{}
	loop     sync.WaitGroup
}

// Option configures the agent.
type Option func(*Agent)

// WithMessageService registers a protocol service for inbound routing.
func WithMessageService(svc dispatcher.MessageService) Option {
	return func(a *Agent) { a.services = append(a.services, svc) }
}

// WithAddressBook sets the address book inbound reply-to endpoints are
// recorded in.
func WithAddressBook(book *dispatcher.AddressBook) Option {
	return func(a *Agent) { a.book = book }
}

// WithInboundTransport adds an inbound transport.
func WithInboundTransport(inbound transport.InboundTransport) Option {
	return func(a *Agent) { a.inbound = append(a.inbound, inbound) }
}

// WithBehaviour adds a ticked behaviour.
func WithBehaviour(b Behaviour) Option {
	return func(a *Agent) { a.behaviours = append(a.behaviours, b) }
}

// WithStarter adds a component started before the agent accepts traffic.
func WithStarter(s Starter) Option {
	return func(a *Agent) { a.starters = append(a.starters, s) }
}

// WithRegistrar sets the directory registrar advertising the agent's
// service.
func WithRegistrar(r *directory.Registrar) Option {
	return func(a *Agent) { a.registrar = r }
}

// WithTickInterval sets the behaviour tick interval.
func WithTickInterval(interval time.Duration) Option {
	return func(a *Agent) { a.tickInterval = interval }
}

// New creates an agent.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		tickInterval: defaultTickInterval,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	if len(a.services) == 0 {
		return nil, errors.New("agent needs at least one protocol service")
	}

	return a, nil
}

// InboundMessageHandler returns the handler inbound payloads are fed to.
// It implements transport.Provider.
func (a *Agent) InboundMessageHandler() transport.InboundMessageHandler {
	return dispatcher.NewInboundRouter(a.services, a.book).MessageHandler()
}

// Start brings the agent up: starters first, then the directory
// registration, then the inbound transports and the tick loop. Any failure
// aborts the start.
func (a *Agent) Start(ctx context.Context) error {
	for _, s := range a.starters {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("agent start: %w", err)
		}
	}

	if a.registrar != nil {
		if err := a.registrar.Register(ctx); err != nil {
			return fmt.Errorf("agent start: %w", err)
		}
	}

	for _, in := range a.inbound {
		if err := in.Start(a); err != nil {
			return fmt.Errorf("agent start: %w", err)
		}

		logger.Infof("inbound transport listening on %s", in.Endpoint())
	}

	a.loop.Add(1)
	go a.tickLoop()

	return nil
}

func (a *Agent) tickLoop() {
	defer a.loop.Done()

	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			for _, b := range a.behaviours {
				b.Tick(a.tickInterval)
			}
		}
	}
}

// Stop shuts the agent down: the tick loop, the inbound transports and the
// directory advertisement.
func (a *Agent) Stop(ctx context.Context) error {
	var firstErr error

	a.stopOnce.Do(func() {
		close(a.done)
		a.loop.Wait()

		for _, in := range a.inbound {
			if err := in.Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		if a.registrar != nil {
			if err := a.registrar.Unregister(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})

	return firstErr
}
