/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest exposes the agent's negotiation state over a small REST API.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agoralab/agora-framework-go/pkg/common/log"
	"github.com/agoralab/agora-framework-go/pkg/protocol/negotiation"
)

var logger = log.New("agora-framework/controller")

// API endpoints.
const (
	StatsPath  = "/negotiations/stats"
	ActivePath = "/negotiations/active"
	HealthPath = "/health"
)

// Operation holds the REST handlers over the agent's dialogue registry.
type Operation struct {
	dialogues *negotiation.Dialogues
}

// New creates the REST operation for the given dialogue registry.
func New(dialogues *negotiation.Dialogues) *Operation {
	return &Operation{dialogues: dialogues}
}

// Router builds the http router serving the API.
func (o *Operation) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc(StatsPath, o.stats).Methods(http.MethodGet)
	router.HandleFunc(ActivePath, o.active).Methods(http.MethodGet)
	router.HandleFunc(HealthPath, o.health).Methods(http.MethodGet)

	return router
}

// stats returns the dialogue end-state statistics.
func (o *Operation) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, o.dialogues.Stats())
}

// active returns the number of dialogues in progress.
func (o *Operation) active(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int{"active": o.dialogues.ActiveCount()})
}

func (o *Operation) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("failed to write response: %v", err)
	}
}
