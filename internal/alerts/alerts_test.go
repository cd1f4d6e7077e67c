package alerts_test

import (
	"testing"
	"time"

	"carbonalert/internal/alerts"
	"carbonalert/internal/models"
)

func testRegion(rules ...models.ThresholdRule) models.Region {
	return models.Region{
		ID:       models.London,
		Label:    "London",
		Rules:    rules,
		Interval: 30 * time.Second,
	}
}

func reading(value float64) *models.IntensityReading {
	return &models.IntensityReading{
		RegionID: models.London,
		Value:    value,
		From:     time.Now().UTC(),
		To:       time.Now().UTC().Add(30 * time.Minute),
		Forecast: true,
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	rules := []models.ThresholdRule{
		{Level: "above", Op: models.OpGreaterEqual, Bound: 300},
		{Level: "below", Op: models.OpLessEqual, Bound: 50},
	}

	tests := []struct {
		value float64
		want  models.Level
	}{
		{310, "above"},
		{20, "below"},
		{150, models.LevelNormal},
		{300, "above"},
		{50, "below"},
	}

	for _, tt := range tests {
		got := alerts.Evaluate(reading(tt.value), rules)
		if got != tt.want {
			t.Errorf("Evaluate(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestEvaluateDeclaredOrderPriority(t *testing.T) {
	// Both rules match 500; the first declared wins.
	rules := []models.ThresholdRule{
		{Level: "high", Op: models.OpGreater, Bound: 200},
		{Level: "very_high", Op: models.OpGreater, Bound: 400},
	}

	if got := alerts.Evaluate(reading(500), rules); got != "high" {
		t.Errorf("expected first matching rule to win, got %q", got)
	}
}

func TestEvaluateNoRulesMatchIsNormal(t *testing.T) {
	rules := []models.ThresholdRule{
		{Level: "high", Op: models.OpGreater, Bound: 1000},
	}
	if got := alerts.Evaluate(reading(100), rules); got != models.LevelNormal {
		t.Errorf("expected normal, got %q", got)
	}
}

func TestStateMachineInitialTransition(t *testing.T) {
	region := testRegion(models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200})
	m := alerts.NewStateMachine(region)

	if m.Level() != models.LevelUnknown {
		t.Fatalf("expected initial level unknown, got %q", m.Level())
	}

	event, ok := m.Observe(reading(150))
	if !ok {
		t.Fatal("expected an event on the first evaluation")
	}
	if event.Previous != models.LevelUnknown || event.New != models.LevelNormal {
		t.Errorf("expected unknown->normal, got %s->%s", event.Previous, event.New)
	}
	if event.Value != 150 {
		t.Errorf("expected value 150 on event, got %v", event.Value)
	}
}

func TestStateMachineSuppressesConstantLevel(t *testing.T) {
	region := testRegion(models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200})
	m := alerts.NewStateMachine(region)

	emitted := 0
	for i := 0; i < 50; i++ {
		if _, ok := m.Observe(reading(250)); ok {
			emitted++
		}
	}

	// Exactly one event: the initial unknown->high transition.
	if emitted != 1 {
		t.Errorf("expected exactly 1 event across a constant-level sequence, got %d", emitted)
	}
	if m.Level() != "high" {
		t.Errorf("expected level high, got %q", m.Level())
	}
}

func TestStateMachineGenuineFlappingEmitsEveryPoll(t *testing.T) {
	region := testRegion(models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200})
	m := alerts.NewStateMachine(region)

	// Prime out of unknown first.
	if _, ok := m.Observe(reading(100)); !ok {
		t.Fatal("expected initial transition")
	}

	emitted := 0
	for i := 0; i < 10; i++ {
		value := 100.0
		if i%2 == 0 {
			value = 300.0
		}
		if _, ok := m.Observe(reading(value)); ok {
			emitted++
		}
	}

	// Alternating levels are genuine transitions; none is suppressed.
	if emitted != 10 {
		t.Errorf("expected 10 events for 10 alternating polls, got %d", emitted)
	}
}

func TestStateMachineEventSequence(t *testing.T) {
	region := testRegion(models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200})
	m := alerts.NewStateMachine(region)

	type transition struct{ prev, next models.Level }
	var got []transition

	for _, value := range []float64{150, 250, 250, 90} {
		if event, ok := m.Observe(reading(value)); ok {
			got = append(got, transition{event.Previous, event.New})
		}
	}

	want := []transition{
		{models.LevelUnknown, models.LevelNormal},
		{models.LevelNormal, "high"},
		{"high", models.LevelNormal},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s->%s, got %s->%s",
				i, want[i].prev, want[i].next, got[i].prev, got[i].next)
		}
	}
}

func TestStateMachineFailuresDoNotBlockEvaluation(t *testing.T) {
	region := testRegion(models.ThresholdRule{Level: "high", Op: models.OpGreater, Bound: 200})
	m := alerts.NewStateMachine(region)

	for i := 1; i <= 3; i++ {
		if got := m.RecordFailure(); got != i {
			t.Fatalf("expected failure count %d, got %d", i, got)
		}
	}

	// Failures never move the level.
	if m.Level() != models.LevelUnknown {
		t.Fatalf("expected level to stay unknown across failures, got %q", m.Level())
	}

	m.RecordSuccess()
	if m.Failures() != 0 {
		t.Errorf("expected failure count reset, got %d", m.Failures())
	}

	event, ok := m.Observe(reading(250))
	if !ok {
		t.Fatal("expected a transition after recovery")
	}
	if event.Previous != models.LevelUnknown || event.New != "high" {
		t.Errorf("expected unknown->high, got %s->%s", event.Previous, event.New)
	}
}
