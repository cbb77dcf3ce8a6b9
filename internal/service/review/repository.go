package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boardwise/movecoach/internal/domain"
)

// ReviewSummary is a history row without the full payload.
type ReviewSummary struct {
	GameID    string    `json:"game_id"`
	RunID     string    `json:"run_id"`
	Model     string    `json:"model"`
	Moves     int       `json:"moves"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	SaveExplanations(ctx context.Context, ge *domain.GameExplanations) error
	GetExplanations(ctx context.Context, gameID string) (*domain.GameExplanations, error)
	RecentReviews(ctx context.Context, limit int) ([]ReviewSummary, error)
}

type repository struct {
	db *sql.DB
}

const reviewsSchema = `
	CREATE TABLE IF NOT EXISTS move_reviews (
		game_id     TEXT PRIMARY KEY,
		run_uuid    TEXT NOT NULL,
		model       TEXT NOT NULL,
		moves_count INTEGER NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`

// NewRepository returns the Postgres-backed store, creating its table
// when missing.
func NewRepository(ctx context.Context, db *sql.DB) (Repository, error) {
	if db == nil {
		return nil, errors.New("db handle is required")
	}
	if _, err := db.ExecContext(ctx, reviewsSchema); err != nil {
		return nil, fmt.Errorf("ensure move_reviews table: %w", err)
	}
	return &repository{db: db}, nil
}

func (r *repository) SaveExplanations(ctx context.Context, ge *domain.GameExplanations) error {
	if ge == nil || ge.GameID == "" {
		return fmt.Errorf("nil or unkeyed explanations payload")
	}
	payload, err := json.Marshal(ge)
	if err != nil {
		return fmt.Errorf("marshal explanations payload: %w", err)
	}

	const query = `
		INSERT INTO move_reviews (game_id, run_uuid, model, moves_count, payload, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (game_id) DO UPDATE SET
			run_uuid = EXCLUDED.run_uuid,
			model = EXCLUDED.model,
			moves_count = EXCLUDED.moves_count,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`

	_, err = r.db.ExecContext(ctx, query, ge.GameID, ge.RunID, ge.Model, len(ge.Moves), payload, ge.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert move review: %w", err)
	}
	return nil
}

func (r *repository) GetExplanations(ctx context.Context, gameID string) (*domain.GameExplanations, error) {
	const query = `SELECT payload FROM move_reviews WHERE game_id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, gameID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select move review: %w", err)
	}

	var ge domain.GameExplanations
	if err := json.Unmarshal(payload, &ge); err != nil {
		return nil, fmt.Errorf("unmarshal explanations payload: %w", err)
	}
	return &ge, nil
}

func (r *repository) RecentReviews(ctx context.Context, limit int) ([]ReviewSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT game_id, run_uuid, model, moves_count, created_at
		FROM move_reviews
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select move reviews: %w", err)
	}
	defer rows.Close()

	summaries := make([]ReviewSummary, 0, limit)
	for rows.Next() {
		var s ReviewSummary
		if err := rows.Scan(&s.GameID, &s.RunID, &s.Model, &s.Moves, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan move review row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
