package explain

import (
	"testing"

	"github.com/boardwise/movecoach/internal/domain"
)

func TestShouldExplainTruthTable(t *testing.T) {
	defaults := DefaultSettings()
	cases := []struct {
		name     string
		class    domain.MoveClassification
		delta    float64
		settings Settings
		want     bool
	}{
		{"blunder always", domain.ClassificationBlunder, 0, defaults, true},
		{"mistake always", domain.ClassificationMistake, 0, defaults, true},
		{"inaccuracy always", domain.ClassificationInaccuracy, 0, defaults, true},
		{"perfect always", domain.ClassificationPerfect, 0, defaults, true},
		{"splendid always", domain.ClassificationSplendid, 0, defaults, true},
		{"best always", domain.ClassificationBest, 0, defaults, true},
		{"excellent off by default", domain.ClassificationExcellent, 40, defaults, false},
		{"excellent flag on", domain.ClassificationExcellent, 0, Settings{ExplainExcellent: true}, true},
		{"opening off by default", domain.ClassificationOpening, 40, defaults, false},
		{"opening flag on", domain.ClassificationOpening, 0, Settings{ExplainOpening: true}, true},
		{"okay below threshold", domain.ClassificationOkay, 4.9, defaults, false},
		{"okay at inclusive threshold", domain.ClassificationOkay, 5.0, defaults, true},
		{"okay negative swing counts", domain.ClassificationOkay, -5.0, defaults, true},
		{"forced quiet", domain.ClassificationForced, 0.4, defaults, false},
		{"forced big swing", domain.ClassificationForced, 12.3, defaults, true},
		{"unknown label uses threshold", domain.MoveClassification("brilliant"), 6, defaults, true},
		{"unknown label quiet", domain.MoveClassification("brilliant"), 1, defaults, false},
	}
	for _, tc := range cases {
		if got := ShouldExplain(tc.class, tc.delta, tc.settings); got != tc.want {
			t.Fatalf("%s: ShouldExplain(%q, %v) = %v, want %v", tc.name, tc.class, tc.delta, got, tc.want)
		}
	}
}

func TestShouldExplainZeroSettingsActLikeDefaults(t *testing.T) {
	if !ShouldExplain(domain.ClassificationOkay, 5.0, Settings{}) {
		t.Fatal("zero settings should keep the 5.0 threshold inclusive")
	}
	if ShouldExplain(domain.ClassificationOkay, 4.99, Settings{}) {
		t.Fatal("zero settings should not explain below the default threshold")
	}
	if ShouldExplain(domain.ClassificationExcellent, 100, Settings{}) {
		t.Fatal("excellent should stay opt-in under zero settings")
	}
}

func TestSettingsWithDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	if s.MaxLength != DefaultMaxLength || s.MinEvalChange != DefaultMinEvalChange {
		t.Fatalf("withDefaults = %+v", s)
	}
	custom := Settings{MaxLength: 80, MinEvalChange: 2.5, ExplainOpening: true}.withDefaults()
	if custom.MaxLength != 80 || custom.MinEvalChange != 2.5 || !custom.ExplainOpening {
		t.Fatalf("withDefaults clobbered custom values: %+v", custom)
	}
}
