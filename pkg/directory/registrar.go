/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
)

var logger = log.New("agora-framework/directory")

// ErrRegistrationFailed is returned when directory registration keeps failing
// after the bounded retries are exhausted. The agent cannot be discovered and
// should deactivate.
var ErrRegistrationFailed = errors.New("directory registration failed")

const (
	defaultRetryInterval = time.Second
	defaultMaxRetries    = 5
)

// Registrar registers a service description in the directory, retrying
// transient failures a bounded number of times.
type Registrar struct {
	dir      Service
	desc     *Description
	interval time.Duration
	retries  uint64
}

// RegistrarOpt is a registrar option.
type RegistrarOpt func(*Registrar)

// WithRetryInterval sets the delay between registration attempts.
func WithRetryInterval(interval time.Duration) RegistrarOpt {
	return func(r *Registrar) { r.interval = interval }
}

// WithMaxRetries sets how often a failed registration is retried.
func WithMaxRetries(retries uint64) RegistrarOpt {
	return func(r *Registrar) { r.retries = retries }
}

// NewRegistrar creates a registrar for the given description.
func NewRegistrar(dir Service, desc *Description, opts ...RegistrarOpt) *Registrar {
	r := &Registrar{
		dir:      dir,
		desc:     desc,
		interval: defaultRetryInterval,
		retries:  defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register advertises the description, retrying on failure. When all retries
// are exhausted it returns ErrRegistrationFailed.
func (r *Registrar) Register(ctx context.Context) error {
	attempt := 0

	err := backoff.Retry(func() error {
		attempt++

		if err := r.dir.RegisterService(ctx, r.desc); err != nil {
			logger.Warnf("registering service %s failed (attempt %d): %v", r.desc.ServiceID, attempt, err)
			return err
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), r.retries), ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	logger.Infof("registered service %s for %s in the directory", r.desc.ServiceID, r.desc.Address)

	return nil
}

// Unregister removes the agent's advertisement from the directory.
func (r *Registrar) Unregister(ctx context.Context) error {
	if err := r.dir.UnregisterService(ctx, r.desc.Address); err != nil {
		return fmt.Errorf("unregister service: %w", err)
	}

	return nil
}
