package ngfilter

import (
	"math"
	"testing"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		level Level
		want  float64
	}{
		{LevelNone, math.Inf(-1)},
		{LevelLow, -10000},
		{LevelMid, -4800},
		{LevelHigh, -1000},
		{Level("bogus"), math.Inf(-1)},
	}
	for _, tt := range tests {
		if got := Threshold(tt.level); got != tt.want {
			t.Fatalf("Threshold(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestPassesBoundaries(t *testing.T) {
	mid := Policy{Level: LevelMid, ShowAnonymous: true}
	if Passes(-4800, false, mid) {
		t.Fatalf("score equal to the threshold must be hidden")
	}
	if !Passes(-4799, false, mid) {
		t.Fatalf("score above the threshold must pass")
	}
	if !Passes(math.MinInt32, false, Policy{Level: LevelNone, ShowAnonymous: true}) {
		t.Fatalf("level none must pass every score")
	}
}

func TestPassesScenario(t *testing.T) {
	policy := Policy{Level: LevelMid, ShowAnonymous: false}
	// A missing score counts as 0.
	scores := []int{-5000, -100, 0}
	anonymous := []bool{false, true, false}
	want := []bool{false, false, true}
	for i := range scores {
		if got := Passes(scores[i], anonymous[i], policy); got != want[i] {
			t.Fatalf("comment %d: Passes = %v, want %v", i, got, want[i])
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Level != LevelMid || !p.ShowAnonymous {
		t.Fatalf("unexpected default %+v", p)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"none": LevelNone, "Low": LevelLow, " mid ": LevelMid, "HIGH": LevelHigh} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("extreme"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
