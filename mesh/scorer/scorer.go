/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package scorer implements the next-hop routing score (component C6): a
// pure function of (packet, neighbor, self) producing a float score plus an
// explanation trail, in the spirit of the teacher's bmc package of pure
// best-master comparison functions (Dscmp / TelcoDscmp).
package scorer

import (
	"time"

	"github.com/fieldrelay/mesh"
)

// Weight and penalty constants, authoritative per spec.
const (
	WInternet    = 50.0
	WSOSPriority = 30.0
	WBattery     = 25.0
	WSignal      = 10.0

	BonusGoalRole  = 15.0
	BonusRelayRole = 5.0

	PStale      = -100.0
	PLowBattery = -20.0
	PInTrace    = -1000.0
	PSender     = -1000.0

	MinViableScore = 0.0

	LowBatteryThreshold = 20
	StaleTimeout        = 120 * time.Second
)

// Component names used in the explanation trail.
const (
	ComponentInTrace    = "in_trace"
	ComponentSender     = "sender"
	ComponentNotRelay   = "not_available_for_relay"
	ComponentInternet   = "internet"
	ComponentSOS        = "sos_priority"
	ComponentGoalRole   = "goal_role_bonus"
	ComponentBattery    = "battery"
	ComponentSignal     = "signal"
	ComponentRelayRole  = "relay_role_bonus"
	ComponentStale      = "stale_penalty"
	ComponentLowBattery = "low_battery_penalty"
)

// Term is one line of the explanation trail: a named component and the
// score delta it contributed.
type Term struct {
	Component string
	Value     float64
}

// Explanation is the ordered list of terms that produced a Score, required
// so operators can justify routing decisions post-incident.
type Explanation struct {
	Score        float64
	Disqualified bool
	Terms        []Term
}

// Score computes the routing score for sending packet p to neighbor via
// self (the local node deciding). now is injected for stale-detection
// determinism in tests.
func Score(p *mesh.Packet, neighbor *mesh.NodeInfo, selfID string, now time.Time) Explanation {
	if p.HasVisited(neighbor.ID) {
		return Explanation{Score: PInTrace, Disqualified: true, Terms: []Term{{ComponentInTrace, PInTrace}}}
	}
	if neighbor.ID == p.LastHop() {
		return Explanation{Score: PSender, Disqualified: true, Terms: []Term{{ComponentSender, PSender}}}
	}
	if neighbor.ID == p.OriginatorID {
		return Explanation{Score: PInTrace, Disqualified: true, Terms: []Term{{ComponentInTrace, PInTrace}}}
	}
	if !neighbor.AvailableForRelay {
		return Explanation{Score: PInTrace, Disqualified: true, Terms: []Term{{ComponentNotRelay, PInTrace}}}
	}

	var terms []Term
	total := 0.0

	add := func(component string, value float64) {
		terms = append(terms, Term{Component: component, Value: value})
		total += value
	}

	if neighbor.HasInternet {
		add(ComponentInternet, WInternet)
	}
	if p.IsSOSClass() && neighbor.HasInternet {
		v := WSOSPriority
		if neighbor.Role == mesh.RoleGoal {
			v += WSOSPriority / 2
		}
		add(ComponentSOS, v)
	}
	add(ComponentBattery, WBattery*neighbor.NormalizedBattery())
	add(ComponentSignal, WSignal*neighbor.NormalizedSignal())

	switch neighbor.Role {
	case mesh.RoleGoal:
		add(ComponentGoalRole, BonusGoalRole)
	case mesh.RoleRelay:
		add(ComponentRelayRole, BonusRelayRole)
	}

	if neighbor.IsStale(now, StaleTimeout) {
		add(ComponentStale, PStale)
	}
	if neighbor.BatteryLevel < LowBatteryThreshold {
		add(ComponentLowBattery, PLowBattery)
	}

	return Explanation{Score: total, Disqualified: false, Terms: terms}
}

// Candidate pairs a scored neighbor with its explanation.
type Candidate struct {
	Neighbor    mesh.NodeInfo
	Explanation Explanation
}

// BestCandidate returns the highest-scoring non-disqualified, above-threshold
// neighbor among candidates, or ok=false if none qualify.
func BestCandidate(p *mesh.Packet, neighbors []mesh.NodeInfo, selfID string, now time.Time) (Candidate, bool) {
	var best *Candidate
	for i := range neighbors {
		n := neighbors[i]
		if n.ID == selfID {
			continue
		}
		exp := Score(p, &n, selfID, now)
		if exp.Disqualified || exp.Score <= MinViableScore {
			continue
		}
		if best == nil || exp.Score > best.Explanation.Score {
			best = &Candidate{Neighbor: n, Explanation: exp}
		}
	}
	if best == nil {
		return Candidate{}, false
	}
	return *best, true
}

// BestCandidateWithFormula is BestCandidate, except that when formula is
// non-nil and enabled, each non-disqualified candidate's score is replaced
// by the operator-supplied expression's result (falling back to the
// built-in weighted score if evaluation fails for that neighbor). Hard
// disqualification always comes from Score, never from the formula.
func BestCandidateWithFormula(p *mesh.Packet, neighbors []mesh.NodeInfo, selfID string, now time.Time, formula *Formula) (Candidate, bool) {
	if formula == nil || !formula.Enabled() {
		return BestCandidate(p, neighbors, selfID, now)
	}

	var best *Candidate
	for i := range neighbors {
		n := neighbors[i]
		if n.ID == selfID {
			continue
		}
		exp := Score(p, &n, selfID, now)
		if exp.Disqualified {
			continue
		}
		if v, err := formula.Evaluate(p, &n, now); err == nil {
			exp.Score = v
		}
		if exp.Score <= MinViableScore {
			continue
		}
		if best == nil || exp.Score > best.Explanation.Score {
			best = &Candidate{Neighbor: n, Explanation: exp}
		}
	}
	if best == nil {
		return Candidate{}, false
	}
	return *best, true
}
