/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher routes agent message envelopes: outbound to the right
// transport for the destination endpoint, inbound to the protocol service
// that accepts them.
package dispatcher

import (
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
)

// Outbound interface is used by protocol services to send message envelopes
// to the counterparty named in the envelope.
type Outbound interface {
	Send(msg *service.Message) error
}

// Resolver resolves an agent address to a transport endpoint.
type Resolver interface {
	Endpoint(address string) (string, error)
}

// EndpointRegistry records transport endpoints learned out of band, e.g. from
// directory search results.
type EndpointRegistry interface {
	SetEndpoint(address, endpoint string)
}

// MessageService is the inbound contract implemented by protocol services.
type MessageService interface {
	// Name of the service.
	Name() string

	// Accept checks whether the service handles messages of the given protocol.
	Accept(protocol string) bool

	// HandleInbound processes an inbound message envelope and returns the
	// conversation reference it was routed to, when one exists.
	HandleInbound(msg *service.Message) (string, error)
}
