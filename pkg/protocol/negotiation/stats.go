/*
Copyright the Agora Framework contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package negotiation

import "sync"

// StatsSnapshot is a point-in-time view of dialogue end-state counts, split
// by which side initiated the dialogue.
type StatsSnapshot struct {
	SelfInitiated  map[string]int `json:"self_initiated"`
	OtherInitiated map[string]int `json:"other_initiated"`
}

type stats struct {
	mu    sync.Mutex
	self  map[EndState]int
	other map[EndState]int
}

func newStats() *stats {
	return &stats{
		self:  make(map[EndState]int),
		other: make(map[EndState]int),
	}
}

func (s *stats) add(endState EndState, selfInitiated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if selfInitiated {
		s.self[endState]++
		return
	}

	s.other[endState]++
}

func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		SelfInitiated:  make(map[string]int, len(s.self)),
		OtherInitiated: make(map[string]int, len(s.other)),
	}

	for endState, n := range s.self {
		snap.SelfInitiated[endState.String()] = n
	}

	for endState, n := range s.other {
		snap.OtherInitiated[endState.String()] = n
	}

	return snap
}
