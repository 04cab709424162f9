/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

func newInboundHandler(prov transport.Provider) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("creation of inbound handler failed")
		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, prov.InboundMessageHandler())
	}), nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	if valid := validatePayload(r, w); !valid {
		return
	}

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		logger.Errorf("error reading request body: %v", err)
		http.Error(w, "failed to read payload", http.StatusInternalServerError)

		return
	}

	if err := messageHandler(body); err != nil {
		// the handler logs the failure details
		logger.Errorf("incoming message processing failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// validatePayload validate and get the payload from the request.
func validatePayload(r *http.Request, w http.ResponseWriter) bool {
	if r.ContentLength == 0 { // empty payload should not be accepted
		http.Error(w, "Empty payload", http.StatusBadRequest)
		return false
	}

	return true
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	ct := r.Header.Get("Content-type")
	if !strings.HasPrefix(ct, commContentType) {
		http.Error(w, "Unsupported Content-type", http.StatusUnsupportedMediaType)
		return false
	}

	return true
}

// Inbound http(inbound) transport.
type Inbound struct {
	externalAddr string
	server       *http.Server
}

// NewInbound creates a new HTTP inbound transport instance. The internalAddr
// is the address the server binds to; externalAddr is the endpoint advertised
// to peers (defaults to internalAddr).
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr},
	}, nil
}

// Start the http(inbound) transport.
func (i *Inbound) Start(prov transport.Provider) error {
	handler, err := newInboundHandler(prov)
	if err != nil {
		return errors.Wrap(err, "HTTP server start failed")
	}

	i.server.Handler = handler

	go func() {
		if err := i.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server start with address [%s] failed, cause: %v", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the http(inbound) transport.
func (i *Inbound) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := i.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown failed")
	}

	return nil
}

// Endpoint provides the http connection details of this server.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}
