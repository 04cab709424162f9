/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"fmt"

	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

// InboundRouter parses inbound payloads and hands the envelope to the first
// registered service that accepts its protocol.
type InboundRouter struct {
	services []MessageService
	book     *AddressBook
}

// NewInboundRouter returns a router over the given services. When an address
// book is supplied, the reply-to endpoint of each inbound envelope is
// recorded in it so replies can be routed back.
func NewInboundRouter(services []MessageService, book *AddressBook) *InboundRouter {
	return &InboundRouter{services: services, book: book}
}

// MessageHandler returns the handler to plug into inbound transports.
func (r *InboundRouter) MessageHandler() transport.InboundMessageHandler {
	return func(payload []byte) error {
		msg, err := service.ParseMessage(payload)
		if err != nil {
			return fmt.Errorf("inbound routing: %w", err)
		}

		if r.book != nil {
			r.book.SetEndpoint(msg.Sender, msg.ReplyTo)
		}

		for _, svc := range r.services {
			if !svc.Accept(msg.Protocol) {
				continue
			}

			_, err = svc.HandleInbound(msg)
			if err != nil {
				return fmt.Errorf("service %s: %w", svc.Name(), err)
			}

			return nil
		}

		return fmt.Errorf("no message handlers found for the protocol %s", msg.Protocol)
	}
}
