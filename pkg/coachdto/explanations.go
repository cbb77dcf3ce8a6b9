package coachdto

import "time"

// MoveExplanation is one explained move of a finished review.
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

// GameExplanations is the stored aggregate of one review run, keyed by
// 1-based move index. Moves the run skipped have no entry.
type GameExplanations struct {
	GameID    string                  `json:"game_id"`
	RunID     string                  `json:"run_id"`
	Model     string                  `json:"model"`
	Opening   string                  `json:"opening,omitempty"`
	Moves     map[int]MoveExplanation `json:"moves"`
	Errors    []string                `json:"errors,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}
