/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
	"github.com/agoralab/agora-framework-go/pkg/directory"
	fwcontext "github.com/agoralab/agora-framework-go/pkg/framework/context"
	"github.com/agoralab/agora-framework-go/pkg/ledger/inmem"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation/buyer"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation/seller"
	"github.com/agoralab/agora-framework-go/pkg/storage/mem"
)

// pipe is an in-process transport connecting the two test agents.
type pipe struct {
	mu       sync.Mutex
	handlers map[string]transport.InboundMessageHandler
}

func newPipe() *pipe {
	return &pipe{handlers: make(map[string]transport.InboundMessageHandler)}
}

func (p *pipe) connect(endpoint string, handler transport.InboundMessageHandler) {
	p.mu.Lock()
	p.handlers[endpoint] = handler
	p.mu.Unlock()
}

func (p *pipe) Send(payload []byte, endpoint string) (string, error) {
	p.mu.Lock()
	handler := p.handlers[endpoint]
	p.mu.Unlock()

	// deliver asynchronously like a real transport would
	go func() {
		if err := handler(payload); err != nil {
			panic(err)
		}
	}()

	return "", nil
}

func (p *pipe) AcceptEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "mem://")
}

func TestAgent_Validation(t *testing.T) {
	_, err := New()
	require.Error(t, err)
}

func TestAgents_TradeEndToEnd(t *testing.T) {
	const (
		sellerAddr = "seller_addr"
		buyerAddr  = "buyer_addr"
	)

	ctx := context.Background()
	pipe := newPipe()
	dir := directory.NewInMemory()
	devledger := inmem.New("devledger", map[string]uint64{buyerAddr: 10000})

	// seller agent
	sellerBook := dispatcher.NewAddressBook()
	sellerStrategy, err := seller.NewStrategy(seller.Config{
		ServiceID:  "weather_data",
		LedgerID:   "devledger",
		Currency:   "FET",
		UnitPrice:  10,
		Address:    sellerAddr,
		IsLedgerTx: true,
		DataSource: func() map[string]string {
			return map[string]string{"temperature": "26", "humidity": "40"}
		},
	})
	require.NoError(t, err)

	sellerSvc, err := seller.New(fwcontext.New(
		fwcontext.WithOutboundDispatcher(dispatcher.NewOutbound(sellerBook, []transport.OutboundTransport{pipe},
			dispatcher.WithReplyTo("mem://seller"))),
		fwcontext.WithStorageProvider(mem.NewProvider()),
		fwcontext.WithLedgerGateway(devledger),
	), sellerStrategy)
	require.NoError(t, err)

	sellerAgent, err := New(
		WithMessageService(sellerSvc),
		WithAddressBook(sellerBook),
		WithRegistrar(directory.NewRegistrar(dir, &directory.Description{
			ServiceID: "weather_data",
			Address:   sellerAddr,
			Endpoint:  "mem://seller",
		})),
		WithTickInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	// buyer agent
	buyerBook := dispatcher.NewAddressBook()
	buyerStrategy, err := buyer.NewStrategy(buyer.Config{
		ServiceID:       "weather_data",
		LedgerID:        "devledger",
		Currency:        "FET",
		MaxUnitPrice:    20,
		MaxTxFee:        10,
		Address:         buyerAddr,
		IsLedgerTx:      true,
		MaxNegotiations: 1,
	})
	require.NoError(t, err)

	buyerSvc, err := buyer.New(fwcontext.New(
		fwcontext.WithOutboundDispatcher(dispatcher.NewOutbound(buyerBook, []transport.OutboundTransport{pipe},
			dispatcher.WithReplyTo("mem://buyer"))),
		fwcontext.WithStorageProvider(mem.NewProvider()),
		fwcontext.WithLedgerGateway(devledger),
		fwcontext.WithLedgerSigner(devledger),
		fwcontext.WithDirectory(dir),
		fwcontext.WithEndpointRegistry(buyerBook),
	), buyerStrategy)
	require.NoError(t, err)

	buyerAgent, err := New(
		WithMessageService(buyerSvc),
		WithAddressBook(buyerBook),
		WithStarter(buyerSvc),
		WithBehaviour(buyerSvc),
		WithTickInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	pipe.connect("mem://seller", sellerAgent.InboundMessageHandler())
	pipe.connect("mem://buyer", buyerAgent.InboundMessageHandler())

	require.NoError(t, sellerAgent.Start(ctx))
	require.NoError(t, buyerAgent.Start(ctx))

	defer func() {
		require.NoError(t, buyerAgent.Stop(ctx))
		require.NoError(t, sellerAgent.Stop(ctx))
	}()

	// the trade runs: search, cfp, propose, accept, match-accept, payment,
	// digest inform, data inform
	require.Eventually(t, func() bool {
		return buyerSvc.Dialogues().Stats().SelfInitiated["successful"] == 1 &&
			sellerSvc.Dialogues().Stats().OtherInitiated["successful"] == 1
	}, 10*time.Second, 50*time.Millisecond)

	// the payment settled on the ledger
	balance, err := devledger.GetBalance(ctx, "devledger", sellerAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(20), balance)
}
