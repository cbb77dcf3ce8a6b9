package explain

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/promptcat"
)

// FormatScore renders an engine score the way prompts and reports show
// it: "Mate in 3", "+1.5", "-0.4", "Unknown".
func FormatScore(score *domain.EvalScore) string {
	if score == nil {
		return "Unknown"
	}
	if score.Mate != nil {
		n := *score.Mate
		if n < 0 {
			n = -n
		}
		return fmt.Sprintf("Mate in %d", n)
	}
	if score.Centipawns == nil {
		return "Unknown"
	}
	pawns := float64(*score.Centipawns) / 100
	if *score.Centipawns > 0 {
		return fmt.Sprintf("+%.1f", pawns)
	}
	return fmt.Sprintf("%.1f", pawns)
}

// SANMove converts a UCI move to standard algebraic notation against
// the position given by fen. The coordinate text comes back verbatim
// when the position or the move cannot be interpreted.
func SANMove(fen, uci string) string {
	uci = strings.ToLower(strings.TrimSpace(uci))
	option, err := nchess.FEN(fen)
	if err != nil {
		return uci
	}
	pos := nchess.NewGame(option).Position()
	if pos == nil {
		return uci
	}
	move, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return uci
	}
	return nchess.AlgebraicNotation{}.Encode(pos, move)
}

// MoveLabel renders a 1-based ply as "12. Qxf7+" or "12... Qxf7+".
func MoveLabel(moveIndex int, move string) string {
	number := (moveIndex + 1) / 2
	if moveIndex%2 == 1 {
		return fmt.Sprintf("%d. %s", number, move)
	}
	return fmt.Sprintf("%d... %s", number, move)
}

// BuildPrompt renders the user prompt for one explanation request. The
// win-probability delta is shown from the mover's point of view.
func BuildPrompt(catalog *promptcat.Catalog, req domain.ExplanationRequest) (string, error) {
	if catalog == nil {
		return "", fmt.Errorf("explain: prompt catalog required")
	}
	mover := "White"
	if !req.WhiteMoved {
		mover = "Black"
	}
	san := SANMove(req.FEN, req.MoveUCI)
	data := map[string]any{
		"FEN":            req.FEN,
		"Opening":        strings.TrimSpace(req.Opening),
		"Label":          MoveLabel(req.MoveIndex, san),
		"Mover":          mover,
		"Classification": req.Classification.String(),
		"EvalBefore":     FormatScore(req.EvalBefore.Best()),
		"EvalAfter":      FormatScore(req.EvalAfter.Best()),
		"WinDelta":       fmt.Sprintf("%+.1f", req.WinDelta()),
	}
	return catalog.Render("move.user", data)
}
