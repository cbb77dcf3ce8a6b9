package coachdto

// ProgressSnapshot is a cumulative view of a running review. The
// progress endpoint returns the latest one; the websocket pushes each
// one as it lands.
type ProgressSnapshot struct {
	GameID    string   `json:"game_id"`
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	LastMove  string   `json:"last_move,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}
