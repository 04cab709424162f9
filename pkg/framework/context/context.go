/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package context creates a framework context which stores the collaborators
// protocol services depend on.
package context

import (
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/directory"
	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/spi/storage"
)

// Provider supplies the framework's collaborators to protocol services.
type Provider struct {
	outbound        dispatcher.Outbound
	storageProvider storage.Provider
	gateway         ledger.Gateway
	signer          ledger.Signer
	dir             directory.Service
	endpoints       dispatcher.EndpointRegistry
}

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithOutboundDispatcher injects the outbound dispatcher.
func WithOutboundDispatcher(outbound dispatcher.Outbound) ProviderOption {
	return func(p *Provider) { p.outbound = outbound }
}

// WithStorageProvider injects the storage provider.
func WithStorageProvider(sp storage.Provider) ProviderOption {
	return func(p *Provider) { p.storageProvider = sp }
}

// WithLedgerGateway injects the ledger gateway.
func WithLedgerGateway(gateway ledger.Gateway) ProviderOption {
	return func(p *Provider) { p.gateway = gateway }
}

// WithLedgerSigner injects the transaction signer.
func WithLedgerSigner(signer ledger.Signer) ProviderOption {
	return func(p *Provider) { p.signer = signer }
}

// WithDirectory injects the service directory.
func WithDirectory(dir directory.Service) ProviderOption {
	return func(p *Provider) { p.dir = dir }
}

// WithEndpointRegistry injects the endpoint registry.
func WithEndpointRegistry(endpoints dispatcher.EndpointRegistry) ProviderOption {
	return func(p *Provider) { p.endpoints = endpoints }
}

// New instantiates a new context provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// OutboundDispatcher returns the outbound dispatcher.
func (p *Provider) OutboundDispatcher() dispatcher.Outbound {
	return p.outbound
}

// StorageProvider returns the storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.storageProvider
}

// LedgerGateway returns the ledger gateway.
func (p *Provider) LedgerGateway() ledger.Gateway {
	return p.gateway
}

// LedgerSigner returns the transaction signer.
func (p *Provider) LedgerSigner() ledger.Signer {
	return p.signer
}

// Directory returns the service directory.
func (p *Provider) Directory() directory.Service {
	return p.dir
}

// EndpointRegistry returns the endpoint registry.
func (p *Provider) EndpointRegistry() dispatcher.EndpointRegistry {
	return p.endpoints
}
