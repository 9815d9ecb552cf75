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

package scorer

import (
	"fmt"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/fieldrelay/mesh"
)

// Formula is an operator-supplied scoring expression (config key
// scorer.formula), evaluated against the same named variables the built-in
// weight table uses. It gives the spec's "AI scoring router" language a
// literal, hot-configurable knob without requiring a rebuild, the way the
// teacher's bmc package supports swapping Dscmp for TelcoDscmp.
type Formula struct {
	expr *govaluate.EvaluableExpression
	src  string
}

// NewFormula compiles expr. An empty expr disables Formula entirely; callers
// should check Enabled before using Evaluate.
func NewFormula(expr string) (*Formula, error) {
	if expr == "" {
		return &Formula{}, nil
	}
	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, mesh.Wrap(mesh.KindValidation, "scorer.NewFormula", err)
	}
	return &Formula{expr: compiled, src: expr}, nil
}

// Enabled reports whether an expression was configured.
func (f *Formula) Enabled() bool {
	return f != nil && f.expr != nil
}

// Source returns the original expression text, for logging.
func (f *Formula) Source() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Evaluate scores p being relayed to neighbor by self using the compiled
// formula instead of the built-in weight table. Hard filters still apply
// before this is ever called; see Score for disqualification handling.
func (f *Formula) Evaluate(p *mesh.Packet, neighbor *mesh.NodeInfo, now time.Time) (float64, error) {
	vars := map[string]interface{}{
		"internet":    boolToFloat(neighbor.HasInternet),
		"sosPriority": boolToFloat(p.IsSOSClass() && neighbor.HasInternet),
		"battery":     neighbor.NormalizedBattery(),
		"signal":      neighbor.NormalizedSignal(),
		"goalRole":    boolToFloat(neighbor.Role == mesh.RoleGoal),
		"relayRole":   boolToFloat(neighbor.Role == mesh.RoleRelay),
		"stale":       boolToFloat(neighbor.IsStale(now, StaleTimeout)),
		"lowBattery":  boolToFloat(neighbor.BatteryLevel < LowBatteryThreshold),
	}
	result, err := f.expr.Evaluate(vars)
	if err != nil {
		return 0, mesh.Wrap(mesh.KindValidation, "scorer.Formula.Evaluate", err)
	}
	score, ok := result.(float64)
	if !ok {
		return 0, mesh.Wrap(mesh.KindValidation, "scorer.Formula.Evaluate",
			fmt.Errorf("formula %q did not evaluate to a number, got %T", f.src, result))
	}
	return score, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
