package coachdto

// EvalScore is one scored engine line. CP and Mate are mutually
// exclusive; both are from White's perspective.
type EvalScore struct {
	CP   *int   `json:"cp,omitempty"`
	Mate *int   `json:"mate,omitempty"`
	Line string `json:"line,omitempty"`
}

// PositionEval is the evaluation of one position in the game trace. The
// classification belongs to the move that produced the position.
type PositionEval struct {
	BestMove       string      `json:"best_move,omitempty"`
	Lines          []EvalScore `json:"lines,omitempty"`
	Classification string      `json:"classification,omitempty"`
	Opening        string      `json:"opening,omitempty"`
}

// ReviewRequest is the analysis payload posted to start a review run.
// Positions holds one entry per position including the start, so it is
// one longer than MovesUCI.
type ReviewRequest struct {
	White     string          `json:"white,omitempty"`
	Black     string          `json:"black,omitempty"`
	MovesUCI  []string        `json:"moves_uci"`
	Positions []PositionEval  `json:"positions"`
	Settings  *ReviewSettings `json:"settings,omitempty"`
}

// ReviewSettings are per-run overrides. Absent fields keep the server
// defaults.
type ReviewSettings struct {
	ExplainExcellent *bool    `json:"explain_excellent,omitempty"`
	ExplainOpening   *bool    `json:"explain_opening,omitempty"`
	MinEvalChange    *float64 `json:"min_eval_change,omitempty"`
	Concurrency      *int     `json:"concurrency,omitempty"`
}

// ReviewAccepted acknowledges a review run that was started.
type ReviewAccepted struct {
	GameID string `json:"game_id"`
	RunID  string `json:"run_id"`
}
