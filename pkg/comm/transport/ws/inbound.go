/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/comm/transport"
)

var logger = log.New("agora-framework/ws")

// Inbound websocket type.
type Inbound struct {
	externalAddr string
	server       *http.Server
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{
		externalAddr: externalAddr,
		server:       &http.Server{Addr: internalAddr},
	}, nil
}

// Start the websocket server.
func (i *Inbound) Start(prov transport.Provider) error {
	if prov == nil || prov.InboundMessageHandler() == nil {
		return errors.New("creation of inbound handler failed")
	}

	i.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.processRequest(w, r, prov.InboundMessageHandler())
	})

	go func() {
		if err := i.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("websocket server start with address [%s] failed, cause: %v", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the websocket server.
func (i *Inbound) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := i.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the websocket connection details of this server.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

func (i *Inbound) processRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	c, err := upgradeConnection(w, r)
	if err != nil {
		logger.Errorf("failed to upgrade the connection: %v", err)
		return
	}

	i.listener(c, messageHandler)
}

func (i *Inbound) listener(conn *websocket.Conn, messageHandler transport.InboundMessageHandler) {
	defer closeWs(conn)

	for {
		_, message, err := conn.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Errorf("error reading request message: %v", err)
			}

			break
		}

		if err := messageHandler(message); err != nil {
			logger.Errorf("incoming message processing failed: %v", err)
		}
	}
}

func upgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return nil, err
	}

	return c, nil
}

func closeWs(conn *websocket.Conn) {
	if err := conn.Close(websocket.StatusNormalClosure, "closing the connection"); err != nil &&
		websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Errorf("connection close error: %v", err)
	}
}
