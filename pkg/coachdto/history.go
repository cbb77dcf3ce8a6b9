package coachdto

import "time"

// HistoryItem is one row of the recent-review listing.
type HistoryItem struct {
	GameID    string    `json:"game_id"`
	RunID     string    `json:"run_id"`
	Model     string    `json:"model"`
	Moves     int       `json:"moves"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Reviews []HistoryItem `json:"reviews"`
}
