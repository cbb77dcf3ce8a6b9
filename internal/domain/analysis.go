package domain

import (
	"math"
	"strings"
	"time"
)

// ExplanationSchemaVersion tags persisted MoveExplanation payloads so
// stored aggregates can be migrated if the shape changes.
const ExplanationSchemaVersion = 1

type MoveClassification string

const (
	ClassificationBlunder    MoveClassification = "blunder"
	ClassificationMistake    MoveClassification = "mistake"
	ClassificationInaccuracy MoveClassification = "inaccuracy"
	ClassificationOkay       MoveClassification = "okay"
	ClassificationExcellent  MoveClassification = "excellent"
	ClassificationBest       MoveClassification = "best"
	ClassificationPerfect    MoveClassification = "perfect"
	ClassificationSplendid   MoveClassification = "splendid"
	ClassificationForced     MoveClassification = "forced"
	ClassificationOpening    MoveClassification = "opening"
)

// ParseClassification normalizes an analyzer-supplied label. Unknown
// labels are kept as-is; an empty label means the move was not
// classified.
func ParseClassification(s string) MoveClassification {
	return MoveClassification(strings.ToLower(strings.TrimSpace(s)))
}

func (c MoveClassification) String() string { return string(c) }

// EvalScore is one scored engine line. Centipawns and Mate are mutually
// exclusive; Mate counts moves until checkmate, negative when the mate
// goes against White. Scores are from White's perspective.
type EvalScore struct {
	Centipawns *int   `json:"cp,omitempty"`
	Mate       *int   `json:"mate,omitempty"`
	Line       string `json:"line,omitempty"`
}

// WinPercent maps the score to a White win probability in percent
// using the logistic centipawn model; mate scores saturate.
func (s EvalScore) WinPercent() float64 {
	if s.Mate != nil {
		if *s.Mate > 0 {
			return 100
		}
		return 0
	}
	if s.Centipawns == nil {
		return 50
	}
	cp := float64(*s.Centipawns)
	return 50 + 50*(2/(1+math.Exp(-0.00368208*cp))-1)
}

// PositionEval is the evaluation of one position in a game trace. The
// classification belongs to the move that produced the position; the
// trace's first entry is the starting position and carries none.
type PositionEval struct {
	BestMove       string             `json:"best_move,omitempty"`
	Lines          []EvalScore        `json:"lines,omitempty"`
	Classification MoveClassification `json:"classification,omitempty"`
	Opening        string             `json:"opening,omitempty"`
}

// Best returns the top engine line, nil when the trace has none.
func (p PositionEval) Best() *EvalScore {
	if len(p.Lines) == 0 {
		return nil
	}
	return &p.Lines[0]
}

func (p PositionEval) WinPercent() float64 {
	best := p.Best()
	if best == nil {
		return 50
	}
	return best.WinPercent()
}

// GameAnalysis is the engine-analyzed game the review pipeline consumes:
// a UCI move list plus one PositionEval per position, starting position
// included (len(Positions) == len(MovesUCI)+1).
type GameAnalysis struct {
	GameID    string         `json:"game_id"`
	White     string         `json:"white,omitempty"`
	Black     string         `json:"black,omitempty"`
	MovesUCI  []string       `json:"moves_uci"`
	Positions []PositionEval `json:"positions"`
}

// ExplanationRequest is one unit of work for the batch dispatcher.
type ExplanationRequest struct {
	GameID         string
	FEN            string
	MoveUCI        string
	MoveIndex      int
	EvalBefore     PositionEval
	EvalAfter      PositionEval
	Classification MoveClassification
	Opening        string
	WinBefore      float64
	WinAfter       float64
	WhiteMoved     bool
}

// WinDelta is the win-probability swing of the move from the mover's
// point of view.
func (r ExplanationRequest) WinDelta() float64 {
	delta := r.WinAfter - r.WinBefore
	if !r.WhiteMoved {
		delta = -delta
	}
	return delta
}

type MoveExplanation struct {
	MoveUCI       string    `json:"move_uci"`
	MoveSAN       string    `json:"move_san"`
	MoveIndex     int       `json:"move_index"`
	Explanation   string    `json:"explanation"`
	Themes        []string  `json:"themes"`
	Rationale     string    `json:"rationale"`
	CreatedAt     time.Time `json:"created_at"`
	SchemaVersion int       `json:"schema_version"`
}

// GameExplanations is the per-game aggregate keyed by 1-based move
// index. A new review run replaces the whole aggregate, it never merges
// into an old one.
type GameExplanations struct {
	GameID    string                  `json:"game_id"`
	RunID     string                  `json:"run_id"`
	Model     string                  `json:"model"`
	Opening   string                  `json:"opening,omitempty"`
	Moves     map[int]MoveExplanation `json:"moves"`
	Errors    []string                `json:"errors,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// BatchProgress is a cumulative snapshot of a running review batch.
// Completed never decreases and never exceeds Total; Errors only grows.
type BatchProgress struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	LastMove  string   `json:"last_move,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}
