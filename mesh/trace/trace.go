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

// Package trace implements loop detection over a packet's trace history
// (component C5): pure predicates with no shared state, in the same spirit
// as the teacher's bmc package of pure Announce-comparison functions.
package trace

import (
	"fmt"

	"github.com/fieldrelay/mesh"
)

// InvalidError explains why Validate rejected a packet's trace.
type InvalidError struct {
	Reason        string
	OffendingNode string
}

func (e *InvalidError) Error() string {
	if e.OffendingNode != "" {
		return fmt.Sprintf("invalid trace: %s (node %q)", e.Reason, e.OffendingNode)
	}
	return fmt.Sprintf("invalid trace: %s", e.Reason)
}

// HasLoop reports whether any node ID appears more than once in trace.
func HasLoop(t []string) bool {
	seen := make(map[string]struct{}, len(t))
	for _, id := range t {
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// HasVisited reports whether nodeID appears anywhere in the packet's trace.
func HasVisited(p *mesh.Packet, nodeID string) bool {
	return p.HasVisited(nodeID)
}

// ExceededMaxHops reports whether the trace has reached or passed max hops.
func ExceededMaxHops(p *mesh.Packet, max int) bool {
	return len(p.Trace) >= max
}

// Validate checks the structural invariants over a packet's trace: it must
// be non-empty, start with the originator, contain no loops, and contain no
// empty node IDs.
func Validate(p *mesh.Packet) error {
	if len(p.Trace) == 0 {
		return &InvalidError{Reason: "trace is empty"}
	}
	if p.Trace[0] != p.OriginatorID {
		return &InvalidError{Reason: "trace does not start with originator", OffendingNode: p.Trace[0]}
	}
	seen := make(map[string]struct{}, len(p.Trace))
	for _, id := range p.Trace {
		if id == "" {
			return &InvalidError{Reason: "trace contains an empty node id"}
		}
		if _, dup := seen[id]; dup {
			return &InvalidError{Reason: "trace contains a loop", OffendingNode: id}
		}
		seen[id] = struct{}{}
	}
	return nil
}
