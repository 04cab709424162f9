/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

type mockProvider struct {
	handler transport.InboundMessageHandler
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return p.handler
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	return port
}

func TestWebSocketRoundTrip(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	received := make(chan []byte, 1)

	inbound, err := NewInbound(addr, "ws://"+addr)
	require.NoError(t, err)
	require.Equal(t, "ws://"+addr, inbound.Endpoint())

	require.NoError(t, inbound.Start(&mockProvider{handler: func(payload []byte) error {
		received <- payload
		return nil
	}}))

	defer func() { require.NoError(t, inbound.Stop()) }()

	// give the server a moment to start listening
	time.Sleep(100 * time.Millisecond)

	outbound := NewOutbound()
	_, err = outbound.Send([]byte(`{"protocol":"negotiation"}`), "ws://"+addr)
	require.NoError(t, err)

	select {
	case payload := <-received:
		require.Equal(t, []byte(`{"protocol":"negotiation"}`), payload)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for inbound payload")
	}
}

func TestInbound_Validation(t *testing.T) {
	_, err := NewInbound("", "")
	require.Error(t, err)

	inbound, err := NewInbound("localhost:26602", "")
	require.NoError(t, err)
	require.Error(t, inbound.Start(nil))
}

func TestOutbound_AcceptEndpoint(t *testing.T) {
	outbound := NewOutbound()

	require.True(t, outbound.AcceptEndpoint("ws://example.com"))
	require.True(t, outbound.AcceptEndpoint("wss://example.com"))
	require.False(t, outbound.AcceptEndpoint("http://example.com"))
}

func TestOutbound_SendError(t *testing.T) {
	outbound := NewOutbound()

	_, err := outbound.Send([]byte("payload"), "ws://127.0.0.1:1")
	require.Error(t, err)
}
