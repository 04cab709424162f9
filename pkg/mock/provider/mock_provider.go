/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mockprovider provides a dependency provider mock for tests.
package mockprovider

import (
	"github.com/agoralab/agora-framework-go/pkg/comm/dispatcher"
	"github.com/agoralab/agora-framework-go/pkg/directory"
	"github.com/agoralab/agora-framework-go/pkg/ledger"
	"github.com/agoralab/agora-framework-go/spi/storage"
)

// Provider mock dependency provider.
type Provider struct {
	OutboundDispatcherValue dispatcher.Outbound
	StorageProviderValue    storage.Provider
	LedgerGatewayValue      ledger.Gateway
	LedgerSignerValue       ledger.Signer
	DirectoryValue          directory.Service
	EndpointRegistryValue   dispatcher.EndpointRegistry
}

// OutboundDispatcher returns the mock outbound dispatcher.
func (p *Provider) OutboundDispatcher() dispatcher.Outbound {
	return p.OutboundDispatcherValue
}

// StorageProvider returns the mock storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.StorageProviderValue
}

// LedgerGateway returns the mock ledger gateway.
func (p *Provider) LedgerGateway() ledger.Gateway {
	return p.LedgerGatewayValue
}

// LedgerSigner returns the mock ledger signer.
func (p *Provider) LedgerSigner() ledger.Signer {
	return p.LedgerSignerValue
}

// Directory returns the mock directory.
func (p *Provider) Directory() directory.Service {
	return p.DirectoryValue
}

// EndpointRegistry returns the mock endpoint registry.
func (p *Provider) EndpointRegistry() dispatcher.EndpointRegistry {
	return p.EndpointRegistryValue
}
