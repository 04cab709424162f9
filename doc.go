/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agora is a framework for building autonomous trading agents that
// negotiate the sale of data for ledger-settled payment.
//
// Packages for end developer usage
//
// pkg/framework/agent: Hosts protocol services, starts the inbound
// transports, registers the agent in the service directory and drives the
// proactive behaviours.
// Reference: https://pkg.go.dev/github.com/agoralab/agora-framework-go/pkg/framework/agent
//
// pkg/protocol/negotiation/seller and pkg/protocol/negotiation/buyer: The two
// sides of the negotiation protocol.
// Reference: https://pkg.go.dev/github.com/agoralab/agora-framework-go/pkg/protocol/negotiation
//
// pkg/controller/rest: Exposes the agent's negotiation state over REST.
// Reference: https://pkg.go.dev/github.com/agoralab/agora-framework-go/pkg/controller/rest
//
// Basic workflow
//
//	1) Build a context.Provider with the dispatcher, storage, ledger and
//	   directory implementations of your deployment.
//	2) Create a seller or buyer service, passing the provider and a strategy.
//	3) Create an agent hosting the service and call Start.
//	4) Call Stop to release resources.
package agora
