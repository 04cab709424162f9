/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"fmt"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/service"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

var logger = log.New("agora-framework/dispatcher")

// OutboundDispatcher dispatch msgs to destination.
type OutboundDispatcher struct {
	outboundTransports []transport.OutboundTransport
	resolver           Resolver
	replyTo            string
}

// OutboundOpt is an outbound dispatcher option.
type OutboundOpt func(*OutboundDispatcher)

// WithReplyTo sets the inbound endpoint stamped on outgoing envelopes so the
// counterparty can learn where to send replies.
func WithReplyTo(endpoint string) OutboundOpt {
	return func(d *OutboundDispatcher) {
		d.replyTo = endpoint
	}
}

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(resolver Resolver, transports []transport.OutboundTransport, opts ...OutboundOpt) *OutboundDispatcher {
	d := &OutboundDispatcher{
		outboundTransports: transports,
		resolver:           resolver,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Send message to the destination named in the envelope's To field.
func (o *OutboundDispatcher) Send(msg *service.Message) error {
	endpoint, err := o.resolver.Endpoint(msg.To)
	if err != nil {
		return fmt.Errorf("outbound dispatch: %w", err)
	}

	if o.replyTo != "" && msg.ReplyTo == "" {
		msg = msg.Clone()
		msg.ReplyTo = o.replyTo
	}

	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("outbound dispatch: %w", err)
	}

	for _, v := range o.outboundTransports {
		if !v.AcceptEndpoint(endpoint) {
			continue
		}

		_, err = v.Send(payload, endpoint)
		if err != nil {
			return fmt.Errorf("outbound dispatch to %s: %w", endpoint, err)
		}

		logger.Debugf("sent %s/%s message to %s", msg.Protocol, msg.Performative, msg.To)

		return nil
	}

	return fmt.Errorf("no outbound transport found for endpoint %s", endpoint)
}
