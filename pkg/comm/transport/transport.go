/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport provides the inbound and outbound transport contracts
// used to move agent message envelopes across the network.
package transport

// InboundMessageHandler is invoked for each message envelope payload received
// by an inbound transport.
type InboundMessageHandler func(payload []byte) error

// Provider contains the dependencies inbound transports need at start time.
type Provider interface {
	// InboundMessageHandler returns the handler inbound payloads are fed to.
	InboundMessageHandler() InboundMessageHandler
}

// InboundTransport interface definition for inbound transport layer.
type InboundTransport interface {
	// Start starts accepting inbound payloads and feeds them to the handler.
	Start(prov Provider) error

	// Stop stops the transport.
	Stop() error

	// Endpoint returns the public endpoint peers should send to.
	Endpoint() string
}

// OutboundTransport interface definition for outbound transport layer.
type OutboundTransport interface {
	// Send sends the payload to the destination endpoint and returns
	// the response payload, if any.
	Send(payload []byte, endpoint string) (string, error)

	// AcceptEndpoint checks if this transport can deliver to the url scheme
	// of the given endpoint.
	AcceptEndpoint(endpoint string) bool
}
