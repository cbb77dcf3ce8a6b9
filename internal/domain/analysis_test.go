package domain

import (
	"math"
	"testing"
)

func intp(v int) *int { return &v }

func TestWinPercent(t *testing.T) {
	even := EvalScore{Centipawns: intp(0)}
	if got := even.WinPercent(); got != 50 {
		t.Fatalf("cp=0 win percent = %v, want 50", got)
	}

	up := EvalScore{Centipawns: intp(150)}
	down := EvalScore{Centipawns: intp(-150)}
	if up.WinPercent() <= 50 {
		t.Fatalf("cp=150 should favor White, got %v", up.WinPercent())
	}
	if got, want := up.WinPercent()-50, 50-down.WinPercent(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("win percent not symmetric: +150 -> %v, -150 -> %v", up.WinPercent(), down.WinPercent())
	}

	if got := (EvalScore{Mate: intp(2)}).WinPercent(); got != 100 {
		t.Fatalf("mate for White = %v, want 100", got)
	}
	if got := (EvalScore{Mate: intp(-2)}).WinPercent(); got != 0 {
		t.Fatalf("mate against White = %v, want 0", got)
	}
	if got := (EvalScore{}).WinPercent(); got != 50 {
		t.Fatalf("empty score = %v, want neutral 50", got)
	}
}

func TestWinDeltaMoverPerspective(t *testing.T) {
	req := ExplanationRequest{WinBefore: 60, WinAfter: 40, WhiteMoved: true}
	if got := req.WinDelta(); got != -20 {
		t.Fatalf("white delta = %v, want -20", got)
	}
	req.WhiteMoved = false
	if got := req.WinDelta(); got != 20 {
		t.Fatalf("black delta = %v, want +20", got)
	}
}

func TestParseClassification(t *testing.T) {
	if got := ParseClassification(" Blunder "); got != ClassificationBlunder {
		t.Fatalf("ParseClassification = %q", got)
	}
	if got := ParseClassification("brilliant"); got != MoveClassification("brilliant") {
		t.Fatalf("unknown labels should pass through, got %q", got)
	}
	if got := ParseClassification(""); got != "" {
		t.Fatalf("empty label should stay empty, got %q", got)
	}
}
