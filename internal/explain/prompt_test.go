package explain

import (
	"strings"
	"testing"

	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/promptcat"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func intp(v int) *int { return &v }

func TestFormatScore(t *testing.T) {
	cases := []struct {
		score *domain.EvalScore
		want  string
	}{
		{&domain.EvalScore{Centipawns: intp(150)}, "+1.5"},
		{&domain.EvalScore{Centipawns: intp(-40)}, "-0.4"},
		{&domain.EvalScore{Centipawns: intp(0)}, "0.0"},
		{&domain.EvalScore{Centipawns: intp(5)}, "+0.1"},
		{&domain.EvalScore{Mate: intp(3)}, "Mate in 3"},
		{&domain.EvalScore{Mate: intp(-3)}, "Mate in 3"},
		{&domain.EvalScore{}, "Unknown"},
		{nil, "Unknown"},
	}
	for _, tc := range cases {
		if got := FormatScore(tc.score); got != tc.want {
			t.Fatalf("FormatScore(%+v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestSANMove(t *testing.T) {
	if got := SANMove(startFEN, "g1f3"); got != "Nf3" {
		t.Fatalf("SANMove = %q, want Nf3", got)
	}
	// uppercase coordinate input is tolerated
	if got := SANMove(startFEN, "E2E4"); got != "e4" {
		t.Fatalf("SANMove = %q, want e4", got)
	}
	// illegal move and broken FEN echo the coordinate text
	if got := SANMove(startFEN, "e2e5"); got != "e2e5" {
		t.Fatalf("illegal move should echo, got %q", got)
	}
	if got := SANMove("not a fen", "e2e4"); got != "e2e4" {
		t.Fatalf("bad fen should echo, got %q", got)
	}
}

func TestMoveLabel(t *testing.T) {
	if got := MoveLabel(1, "e4"); got != "1. e4" {
		t.Fatalf("MoveLabel(1) = %q", got)
	}
	if got := MoveLabel(2, "e5"); got != "1... e5" {
		t.Fatalf("MoveLabel(2) = %q", got)
	}
	if got := MoveLabel(7, "Nf3"); got != "4. Nf3" {
		t.Fatalf("MoveLabel(7) = %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	catalog, err := promptcat.New("")
	if err != nil {
		t.Fatalf("promptcat.New: %v", err)
	}

	req := domain.ExplanationRequest{
		GameID:         "g1",
		FEN:            startFEN,
		MoveUCI:        "g1f3",
		MoveIndex:      1,
		EvalBefore:     domain.PositionEval{Lines: []domain.EvalScore{{Centipawns: intp(20)}}},
		EvalAfter:      domain.PositionEval{Lines: []domain.EvalScore{{Centipawns: intp(40)}}},
		Classification: domain.ClassificationBest,
		Opening:        "Réti Opening",
		WinBefore:      50,
		WinAfter:       52,
		WhiteMoved:     true,
	}
	prompt, err := BuildPrompt(catalog, req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{startFEN, "1. Nf3", "White", "best", "Réti Opening", "+0.2", "+0.4", "+2.0%"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// Black's move: the delta flips to the mover's point of view and
	// the opening line disappears when no name is known.
	req.WhiteMoved = false
	req.MoveIndex = 2
	req.Opening = ""
	req.WinBefore = 55
	req.WinAfter = 45
	prompt, err = BuildPrompt(catalog, req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Black") || !strings.Contains(prompt, "+10.0%") {
		t.Fatalf("black mover prompt wrong:\n%s", prompt)
	}
	if strings.Contains(prompt, "Opening:") {
		t.Fatalf("empty opening should drop the opening line:\n%s", prompt)
	}
}
