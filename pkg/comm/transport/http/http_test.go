/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

type mockProvider struct {
	handler transport.InboundMessageHandler
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return p.handler
}

func TestInboundHandler(t *testing.T) {
	var received []byte

	handler, err := newInboundHandler(&mockProvider{handler: func(payload []byte) error {
		received = payload
		return nil
	}})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	defer server.Close()

	t.Run("accepts POST with json payload", func(t *testing.T) {
		resp, err := http.Post(server.URL, commContentType, bytes.NewBufferString(`{"protocol":"negotiation"}`))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Equal(t, []byte(`{"protocol":"negotiation"}`), received)
	})

	t.Run("rejects GET", func(t *testing.T) {
		resp, err := http.Get(server.URL)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("rejects wrong content type", func(t *testing.T) {
		resp, err := http.Post(server.URL, "text/plain", bytes.NewBufferString("hello"))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		resp, err := http.Post(server.URL, commContentType, nil)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("nil provider fails", func(t *testing.T) {
		_, err := newInboundHandler(nil)
		require.Error(t, err)
	})
}

func TestOutbound_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	t.Run("requires a client", func(t *testing.T) {
		_, err := NewOutbound()
		require.Error(t, err)
	})

	t.Run("posts payload", func(t *testing.T) {
		outbound, err := NewOutbound(WithOutboundHTTPClient(server.Client()))
		require.NoError(t, err)

		_, err = outbound.Send([]byte("payload"), server.URL)
		require.NoError(t, err)
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		outbound, err := NewOutbound(WithOutboundHTTPClient(&http.Client{}))
		require.NoError(t, err)

		_, err = outbound.Send([]byte("payload"), "http://127.0.0.1:0")
		require.Error(t, err)
	})
}

func TestOutbound_AcceptEndpoint(t *testing.T) {
	outbound, err := NewOutbound(WithOutboundHTTPClient(&http.Client{}))
	require.NoError(t, err)

	require.True(t, outbound.AcceptEndpoint("http://example.com"))
	require.True(t, outbound.AcceptEndpoint("https://example.com"))
	require.False(t, outbound.AcceptEndpoint("ws://example.com"))
}

func TestInbound_StartStop(t *testing.T) {
	inbound, err := NewInbound("localhost:26601", "http://localhost:26601")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:26601", inbound.Endpoint())

	require.NoError(t, inbound.Start(&mockProvider{handler: func([]byte) error { return nil }}))
	require.NoError(t, inbound.Stop())

	_, err = NewInbound("", "")
	require.Error(t, err)
}
