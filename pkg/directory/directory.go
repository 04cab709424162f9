/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package directory defines the service directory contract agents use to
// advertise data services and to discover counterparties.
package directory

import "context"

// Description advertises one agent's data service in the directory.
type Description struct {
	// ServiceID is the type of data on offer.
	ServiceID string `json:"service_id"`

	// Address is the agent's address.
	Address string `json:"address"`

	// Endpoint is the transport endpoint the agent receives messages on.
	Endpoint string `json:"endpoint"`

	// Attributes are free-form properties of the offered service.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Query describes the service a buyer searches for.
type Query struct {
	ServiceID   string            `json:"service_id"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// Service is the directory interface. Calls may block on network io and
// honour the passed context.
type Service interface {
	// RegisterService advertises the description in the directory.
	RegisterService(ctx context.Context, desc *Description) error

	// UnregisterService removes the agent's advertisement.
	UnregisterService(ctx context.Context, address string) error

	// SearchServices returns the descriptions matching the query.
	SearchServices(ctx context.Context, query *Query) ([]*Description, error)
}
