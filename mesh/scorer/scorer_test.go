package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldrelay/mesh"
)

func basePacket() *mesh.Packet {
	return &mesh.Packet{
		ID:           "p1",
		OriginatorID: "origin",
		Trace:        []string{"origin", "hop1"},
		TTL:          10,
		Priority:     0,
		Type:         mesh.PacketData,
	}
}

func goodNeighbor(id string) *mesh.NodeInfo {
	return &mesh.NodeInfo{
		ID:                id,
		HasInternet:       true,
		BatteryLevel:      80,
		SignalStrength:    -50,
		Role:              mesh.RoleRelay,
		AvailableForRelay: true,
		LastSeen:          time.Now(),
	}
}

func TestScoreDisqualifiesVisitedNeighbor(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("origin")
	exp := Score(p, n, "self", time.Now())
	require.True(t, exp.Disqualified)
	require.Equal(t, PInTrace, exp.Score)
}

func TestScoreDisqualifiesLastHop(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("hop1")
	exp := Score(p, n, "self", time.Now())
	require.True(t, exp.Disqualified)
	require.Equal(t, PSender, exp.Score)
}

func TestScoreDisqualifiesNotAvailableForRelay(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("n2")
	n.AvailableForRelay = false
	exp := Score(p, n, "self", time.Now())
	require.True(t, exp.Disqualified)
}

func TestScorePositiveWeighting(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("n2")
	exp := Score(p, n, "self", time.Now())
	require.False(t, exp.Disqualified)
	require.Greater(t, exp.Score, 0.0)
}

func TestScoreSOSBonusForGoalRole(t *testing.T) {
	p := basePacket()
	p.Type = mesh.PacketSOS
	p.Priority = mesh.SOSPriority

	relay := goodNeighbor("relay")
	relay.Role = mesh.RoleRelay
	goal := goodNeighbor("goal")
	goal.Role = mesh.RoleGoal

	now := time.Now()
	relayExp := Score(p, relay, "self", now)
	goalExp := Score(p, goal, "self", now)
	require.Greater(t, goalExp.Score, relayExp.Score)
}

func TestScoreStalePenaltyIsNotDisqualifying(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("n2")
	n.LastSeen = time.Now().Add(-StaleTimeout - time.Minute)
	exp := Score(p, n, "self", time.Now())
	require.False(t, exp.Disqualified)
}

func TestScoreLowBatteryPenalty(t *testing.T) {
	p := basePacket()
	low := goodNeighbor("low")
	low.BatteryLevel = 10
	high := goodNeighbor("high")
	high.BatteryLevel = 90

	now := time.Now()
	require.Greater(t, Score(p, high, "self", now).Score, Score(p, low, "self", now).Score)
}

func TestBestCandidatePicksHighestScore(t *testing.T) {
	p := basePacket()
	weak := goodNeighbor("weak")
	weak.BatteryLevel = 5
	weak.SignalStrength = -95
	strong := goodNeighbor("strong")
	strong.BatteryLevel = 100
	strong.SignalStrength = -10

	best, ok := BestCandidate(p, []mesh.NodeInfo{*weak, *strong}, "self", time.Now())
	require.True(t, ok)
	require.Equal(t, "strong", best.Neighbor.ID)
}

func TestBestCandidateReturnsFalseWhenNoneQualify(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("origin")
	_, ok := BestCandidate(p, []mesh.NodeInfo{*n}, "self", time.Now())
	require.False(t, ok)
}

func TestFormulaOverridesBuiltin(t *testing.T) {
	f, err := NewFormula("battery * 100 + signal * 10")
	require.NoError(t, err)
	require.True(t, f.Enabled())

	p := basePacket()
	n := goodNeighbor("n2")
	score, err := f.Evaluate(p, n, time.Now())
	require.NoError(t, err)
	require.InDelta(t, n.NormalizedBattery()*100+n.NormalizedSignal()*10, score, 0.0001)
}

func TestFormulaDisabledWhenEmpty(t *testing.T) {
	f, err := NewFormula("")
	require.NoError(t, err)
	require.False(t, f.Enabled())
}

func TestFormulaRejectsInvalidExpression(t *testing.T) {
	_, err := NewFormula("battery +++ ")
	require.Error(t, err)
}

func TestBestCandidateWithFormulaUsesExpressionRanking(t *testing.T) {
	p := basePacket()
	high := goodNeighbor("high")
	high.BatteryLevel = 90
	low := goodNeighbor("low")
	low.BatteryLevel = 10

	f, err := NewFormula("battery")
	require.NoError(t, err)

	best, ok := BestCandidateWithFormula(p, []mesh.NodeInfo{*low, *high}, "self", time.Now(), f)
	require.True(t, ok)
	require.Equal(t, "high", best.Neighbor.ID)
}

func TestBestCandidateWithFormulaFallsBackWhenNilOrDisabled(t *testing.T) {
	p := basePacket()
	n := goodNeighbor("n1")

	builtin, ok := BestCandidate(p, []mesh.NodeInfo{*n}, "self", time.Now())
	require.True(t, ok)

	withNil, ok := BestCandidateWithFormula(p, []mesh.NodeInfo{*n}, "self", time.Now(), nil)
	require.True(t, ok)
	require.Equal(t, builtin.Explanation.Score, withNil.Explanation.Score)

	disabled, err := NewFormula("")
	require.NoError(t, err)
	withDisabled, ok := BestCandidateWithFormula(p, []mesh.NodeInfo{*n}, "self", time.Now(), disabled)
	require.True(t, ok)
	require.Equal(t, builtin.Explanation.Score, withDisabled.Explanation.Score)
}

func TestBestCandidateWithFormulaStillRespectsHardDisqualification(t *testing.T) {
	p := basePacket()
	visited := goodNeighbor("hop1") // already in trace
	f, err := NewFormula("battery")
	require.NoError(t, err)

	_, ok := BestCandidateWithFormula(p, []mesh.NodeInfo{*visited}, "self", time.Now(), f)
	require.False(t, ok)
}
