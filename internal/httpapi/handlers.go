package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/boardimg"
	"github.com/boardwise/movecoach/internal/service/review"
	"github.com/boardwise/movecoach/pkg/coachdto"
)

// routeGames dispatches /api/games/{id}/... by hand; the resource tree
// is small enough that a router dependency would not pay for itself.
func (s *Server) routeGames(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) < 4 {
		s.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	gameID := parts[2]

	switch {
	case len(parts) == 4 && parts[3] == "review":
		switch r.Method {
		case http.MethodPost:
			s.startReview(w, r, gameID)
		case http.MethodDelete:
			s.cancelReview(w, r, gameID)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST or DELETE")
		}
	case len(parts) == 4 && parts[3] == "explanations":
		s.requireGet(w, r, func() { s.explanations(w, r, gameID) })
	case len(parts) == 4 && parts[3] == "progress":
		s.requireGet(w, r, func() { s.progress(w, r, gameID) })
	case len(parts) == 5 && parts[3] == "progress" && parts[4] == "ws":
		s.requireGet(w, r, func() { s.progressWS(w, r, gameID) })
	case len(parts) == 6 && parts[3] == "moves" && parts[5] == "board.png":
		s.requireGet(w, r, func() { s.boardPNG(w, r, gameID, parts[4]) })
	case len(parts) == 4 && parts[3] == "report":
		s.requireGet(w, r, func() { s.gameReport(w, r, gameID) })
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (s *Server) requireGet(w http.ResponseWriter, r *http.Request, next func()) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	next()
}

func (s *Server) startReview(w http.ResponseWriter, r *http.Request, gameID string) {
	var req coachdto.ReviewRequest
	body := http.MaxBytesReader(w, r.Body, maxReviewBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "malformed analysis payload: "+err.Error())
		return
	}

	runID, err := s.reviews.StartReview(toDomainAnalysis(gameID, &req), runOptions(req.Settings)...)
	if errors.Is(err, review.ErrReviewInProgress) {
		s.writeError(w, http.StatusConflict, "review_in_progress", "a review for this game is already running")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, coachdto.ReviewAccepted{GameID: gameID, RunID: runID})
}

func (s *Server) cancelReview(w http.ResponseWriter, _ *http.Request, gameID string) {
	if err := s.reviews.CancelReview(gameID); err != nil {
		s.writeError(w, http.StatusNotFound, "no_active_review", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) explanations(w http.ResponseWriter, r *http.Request, gameID string) {
	ge, err := s.reviews.Explanations(r.Context(), gameID)
	if errors.Is(err, review.ErrReviewNotFound) {
		s.writeError(w, http.StatusNotFound, "not_found", "no stored review for this game")
		return
	}
	if err != nil {
		s.logger.Error("load explanations", zap.String("rid", requestIDFrom(r.Context())), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal", "loading the review failed")
		return
	}
	s.writeJSON(w, http.StatusOK, toDTOExplanations(ge))
}

func (s *Server) progress(w http.ResponseWriter, _ *http.Request, gameID string) {
	p, ok := s.reviews.Progress(gameID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no_active_review", "no review is running for this game")
		return
	}
	s.writeJSON(w, http.StatusOK, toDTOProgress(gameID, p))
}

func (s *Server) gameReport(w http.ResponseWriter, r *http.Request, gameID string) {
	ge, err := s.reviews.Explanations(r.Context(), gameID)
	if errors.Is(err, review.ErrReviewNotFound) {
		s.writeError(w, http.StatusNotFound, "not_found", "no stored review for this game")
		return
	}
	if err != nil {
		s.logger.Error("load explanations", zap.String("rid", requestIDFrom(r.Context())), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal", "loading the review failed")
		return
	}

	// Without the analysis the report simply omits classification tags
	// and win swings.
	analysis, err := s.reviews.Analysis(r.Context(), gameID)
	if err != nil {
		analysis = nil
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(s.reporter.Game(ge, analysis))); err != nil {
		s.logger.Warn("write report failed", zap.Error(err))
	}
}

func (s *Server) boardPNG(w http.ResponseWriter, r *http.Request, gameID, rawPly string) {
	ply, err := strconv.Atoi(rawPly)
	if err != nil || ply < 1 {
		s.writeError(w, http.StatusBadRequest, "bad_request", "ply must be a positive integer")
		return
	}

	analysis, err := s.reviews.Analysis(r.Context(), gameID)
	if errors.Is(err, review.ErrReviewNotFound) {
		s.writeError(w, http.StatusNotFound, "not_found", "no analysis for this game")
		return
	}
	if err != nil {
		s.logger.Error("load analysis", zap.String("rid", requestIDFrom(r.Context())), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal", "loading the analysis failed")
		return
	}
	if ply > len(analysis.MovesUCI) {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("ply %d beyond the game's %d moves", ply, len(analysis.MovesUCI)))
		return
	}

	game := nchess.NewGame()
	if err := replayMoves(game, analysis.MovesUCI[:ply-1]); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	playedUCI := normalizeUCI(analysis.MovesUCI[ply-1])
	notation := nchess.UCINotation{}
	played, err := notation.Decode(game.Position(), playedUCI)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode move %d (%s): %v", ply, playedUCI, err))
		return
	}

	opts := boardimg.Options{LastMove: &boardimg.Move{From: played.S1(), To: played.S2()}}
	if best := normalizeUCI(analysis.Positions[ply-1].BestMove); best != "" && best != playedUCI {
		if bm, err := notation.Decode(game.Position(), best); err == nil {
			opts.BestMove = &boardimg.Move{From: bm.S1(), To: bm.S2()}
		}
	}

	img, err := s.renderer.RenderPNG(r.Context(), game.Position().Board(), opts)
	if err != nil {
		s.logger.Error("render board", zap.String("rid", requestIDFrom(r.Context())), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal", "rendering the board failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		s.logger.Warn("write board image failed", zap.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", "limit must be an integer")
			return
		}
		limit = n
	}
	items, err := s.reviews.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("load history", zap.String("rid", requestIDFrom(r.Context())), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal", "loading history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, toDTOHistory(items))
}

func replayMoves(game *nchess.Game, moves []string) error {
	notation := nchess.UCINotation{}
	for i, uci := range moves {
		move, err := notation.Decode(game.Position(), normalizeUCI(uci))
		if err != nil {
			return fmt.Errorf("decode move %d (%s): %w", i+1, uci, err)
		}
		if err := game.Move(move, nil); err != nil {
			return fmt.Errorf("apply move %d (%s): %w", i+1, uci, err)
		}
	}
	return nil
}

func normalizeUCI(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
