package drift

import (
	"path/filepath"
	"testing"
)

func TestObserveBands(t *testing.T) {
	tests := []struct {
		name     string
		state    ReminderState
		wantLow  bool // score expected < 70
	}{
		{"clean step", ReminderState{}, false},
		{"one tool failure", ReminderState{LastToolFailed: true}, false},
		{"fail streak", ReminderState{SameToolFailStreak: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			score, _ := s.Observe(tt.state)
			if tt.wantLow && score >= 70 {
				t.Errorf("Observe() score = %v, want < 70", score)
			}
			if !tt.wantLow && score < 70 {
				t.Errorf("Observe() score = %v, want >= 70", score)
			}
		})
	}
}

func TestObserveEMASmoothsDips(t *testing.T) {
	s := NewState()
	s.Observe(ReminderState{})
	firstEMA := s.EMA

	_, advisory := s.Observe(ReminderState{SameToolFailStreak: 5, NoProgressStreak: 5})
	if s.EMA == firstEMA {
		t.Error("EMA did not move after a bad step")
	}
	if s.LastScore >= s.EMA {
		t.Errorf("single bad step score %v should pull below smoothed EMA %v only gradually", s.LastScore, s.EMA)
	}
	_ = advisory
}

func TestDetectCycleSameCallRepeat(t *testing.T) {
	s := NewState()
	key := ActionKey("search", map[string]any{"query": "foo"})
	for i := 0; i < 3; i++ {
		s.RecordAction(key)
	}
	if !s.DetectCycle() {
		t.Error("DetectCycle() = false, want true for 3x identical repeat")
	}
}

func TestDetectCyclePeriodTwo(t *testing.T) {
	s := NewState()
	a := ActionKey("search", map[string]any{"query": "a"})
	b := ActionKey("search", map[string]any{"query": "b"})
	for i := 0; i < 3; i++ {
		s.RecordAction(a)
		s.RecordAction(b)
	}
	if !s.DetectCycle() {
		t.Error("DetectCycle() = false, want true for period-2 repeat")
	}
}

func TestDetectCycleNoPattern(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.RecordAction(ActionKey("search", map[string]any{"query": i}))
	}
	if s.DetectCycle() {
		t.Error("DetectCycle() = true, want false for distinct calls")
	}
}

func TestBandForThresholds(t *testing.T) {
	tests := []struct {
		count int
		want  Band
	}{
		{0, BandNone}, {2, BandNone},
		{3, BandLevel2}, {4, BandLevel2},
		{5, BandLevel3}, {6, BandLevel3},
		{7, BandLevel4}, {100, BandLevel4},
	}
	for _, tt := range tests {
		if got := BandFor(tt.count); got != tt.want {
			t.Errorf("BandFor(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestEnforceBudgetLevel3ShrinksWithFloor(t *testing.T) {
	// remaining = 30 - 10 = 20, 2/3 of 20 = 13 (> floor of 6)
	got := BandLevel3.EnforceBudget(10, 30)
	if want := 10 + 13; got != want {
		t.Errorf("EnforceBudget() = %d, want %d", got, want)
	}
}

func TestEnforceBudgetLevel3RespectsFloor(t *testing.T) {
	// remaining = 12 - 10 = 2, 2/3 of 2 = 1 (< floor of 6) -> floor applies
	got := BandLevel3.EnforceBudget(10, 12)
	if want := 10 + 6; got != want {
		t.Errorf("EnforceBudget() = %d, want %d", got, want)
	}
}

func TestEnforceBudgetLevel4HardCaps(t *testing.T) {
	got := BandLevel4.EnforceBudget(10, 100)
	if want := 16; got != want {
		t.Errorf("EnforceBudget() = %d, want %d", got, want)
	}
}

func TestEnforceBudgetNoneLeavesUnchanged(t *testing.T) {
	if got := BandNone.EnforceBudget(10, 100); got != 100 {
		t.Errorf("EnforceBudget() = %d, want unchanged 100", got)
	}
}

func TestCriticShouldFire(t *testing.T) {
	if CriticShouldFire(3, 4, 0, true, 0) {
		t.Error("CriticShouldFire() = true before interval elapsed")
	}
	if !CriticShouldFire(4, 4, 0, true, 0) {
		t.Error("CriticShouldFire() = false at interval boundary")
	}
	if CriticShouldFire(4, 4, 0, false, 0) {
		t.Error("CriticShouldFire() = true with no recent tool result")
	}
	if CriticShouldFire(4, 4, 0, true, 7) {
		t.Error("CriticShouldFire() = true at BandLevel4, want false (critic silenced)")
	}
}

func TestLoadStateDiscardsViolationsKeepsCriticHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drift_state.json")

	seed := NewState()
	seed.Violations["critic_correction"] = 6
	seed.CriticHistory = []string{"earlier correction"}
	if err := seed.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := LoadState(path)
	if loaded.Violations["critic_correction"] != 0 {
		t.Errorf("LoadState() violations = %d, want 0 (reset per session)", loaded.Violations["critic_correction"])
	}
	if len(loaded.CriticHistory) != 1 || loaded.CriticHistory[0] != "earlier correction" {
		t.Errorf("LoadState() critic history = %v, want carried forward", loaded.CriticHistory)
	}
}

func TestLoadStateMissingFileIsFresh(t *testing.T) {
	loaded := LoadState(filepath.Join(t.TempDir(), "missing.json"))
	if loaded.Turns != 0 || len(loaded.CriticHistory) != 0 {
		t.Error("LoadState() on missing file should return a fresh empty state")
	}
}

func TestActionKeyDeterministic(t *testing.T) {
	a := ActionKey("search", map[string]any{"query": "foo"})
	b := ActionKey("search", map[string]any{"query": "foo"})
	if a != b {
		t.Errorf("ActionKey() not deterministic: %q vs %q", a, b)
	}
}
