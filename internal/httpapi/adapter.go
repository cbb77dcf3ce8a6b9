package httpapi

import (
	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/service/review"
	"github.com/boardwise/movecoach/pkg/coachdto"
)

func toDomainAnalysis(gameID string, req *coachdto.ReviewRequest) *domain.GameAnalysis {
	if req == nil {
		return nil
	}
	analysis := &domain.GameAnalysis{
		GameID:    gameID,
		White:     req.White,
		Black:     req.Black,
		MovesUCI:  append([]string(nil), req.MovesUCI...),
		Positions: make([]domain.PositionEval, 0, len(req.Positions)),
	}
	for _, p := range req.Positions {
		analysis.Positions = append(analysis.Positions, domain.PositionEval{
			BestMove:       p.BestMove,
			Lines:          toDomainLines(p.Lines),
			Classification: domain.ParseClassification(p.Classification),
			Opening:        p.Opening,
		})
	}
	return analysis
}

func toDomainLines(lines []coachdto.EvalScore) []domain.EvalScore {
	out := make([]domain.EvalScore, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.EvalScore{
			Centipawns: copyIntPtr(l.CP),
			Mate:       copyIntPtr(l.Mate),
			Line:       l.Line,
		})
	}
	return out
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// runOptions maps the per-request overrides onto run options; absent
// fields keep the server defaults.
func runOptions(s *coachdto.ReviewSettings) []review.RunOption {
	if s == nil {
		return nil
	}
	var opts []review.RunOption
	if s.ExplainExcellent != nil {
		opts = append(opts, review.WithExplainExcellent(*s.ExplainExcellent))
	}
	if s.ExplainOpening != nil {
		opts = append(opts, review.WithExplainOpening(*s.ExplainOpening))
	}
	if s.MinEvalChange != nil {
		opts = append(opts, review.WithMinEvalChange(*s.MinEvalChange))
	}
	if s.Concurrency != nil {
		opts = append(opts, review.WithConcurrency(*s.Concurrency))
	}
	return opts
}

func toDTOExplanations(ge *domain.GameExplanations) *coachdto.GameExplanations {
	if ge == nil {
		return nil
	}
	out := &coachdto.GameExplanations{
		GameID:    ge.GameID,
		RunID:     ge.RunID,
		Model:     ge.Model,
		Opening:   ge.Opening,
		Moves:     make(map[int]coachdto.MoveExplanation, len(ge.Moves)),
		Errors:    append([]string(nil), ge.Errors...),
		CreatedAt: ge.CreatedAt,
	}
	for idx, m := range ge.Moves {
		out.Moves[idx] = coachdto.MoveExplanation{
			MoveUCI:       m.MoveUCI,
			MoveSAN:       m.MoveSAN,
			MoveIndex:     m.MoveIndex,
			Explanation:   m.Explanation,
			Themes:        append([]string(nil), m.Themes...),
			Rationale:     m.Rationale,
			CreatedAt:     m.CreatedAt,
			SchemaVersion: m.SchemaVersion,
		}
	}
	return out
}

func toDTOProgress(gameID string, p domain.BatchProgress) coachdto.ProgressSnapshot {
	return coachdto.ProgressSnapshot{
		GameID:    gameID,
		Total:     p.Total,
		Completed: p.Completed,
		LastMove:  p.LastMove,
		Errors:    append([]string(nil), p.Errors...),
	}
}

func toDTOHistory(items []review.ReviewSummary) coachdto.HistoryResponse {
	out := coachdto.HistoryResponse{Reviews: make([]coachdto.HistoryItem, 0, len(items))}
	for _, it := range items {
		out.Reviews = append(out.Reviews, coachdto.HistoryItem{
			GameID:    it.GameID,
			RunID:     it.RunID,
			Model:     it.Model,
			Moves:     it.Moves,
			CreatedAt: it.CreatedAt,
		})
	}
	return out
}
