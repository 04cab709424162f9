/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const outboundTimeout = 10 * time.Second

// OutboundClient is an outbound transport that delivers message envelopes
// over a websocket connection. A fresh connection is dialed per send.
type OutboundClient struct{}

// NewOutbound creates a new instance of the outbound WebSocket transport.
func NewOutbound() *OutboundClient {
	return &OutboundClient{}
}

// Send sends the payload over a websocket connection to the destination
// endpoint. The protocol is fire-and-forget, so no response is read.
func (cs *OutboundClient) Send(payload []byte, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), outboundTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("websocket client dial [%s]: %w", endpoint, err)
	}

	defer closeWs(conn)

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return "", fmt.Errorf("websocket write message: %w", err)
	}

	return "", nil
}

// AcceptEndpoint checks for the url scheme.
func (cs *OutboundClient) AcceptEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://")
}
