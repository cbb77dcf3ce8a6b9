package explain

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/boardwise/movecoach/internal/domain"
)

var (
	ErrNoAnalysis = errors.New("explain: analysis required")
	ErrNoGameID   = errors.New("explain: game id required")
)

// BuildRequests walks an analyzed game and emits one request per move
// the policy selects. Position i of the eval trace is the position
// after i plies, so the move at 1-based ply p sits between positions
// p-1 and p; odd plies are White's.
func BuildRequests(analysis *domain.GameAnalysis, settings Settings) ([]domain.ExplanationRequest, error) {
	if analysis == nil {
		return nil, ErrNoAnalysis
	}
	if strings.TrimSpace(analysis.GameID) == "" {
		return nil, ErrNoGameID
	}
	if len(analysis.Positions) != len(analysis.MovesUCI)+1 {
		return nil, fmt.Errorf("explain: eval trace has %d positions for %d moves", len(analysis.Positions), len(analysis.MovesUCI))
	}
	settings = settings.withDefaults()

	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	fens := make([]string, 0, len(analysis.MovesUCI)+1)
	fens = append(fens, game.FEN())
	for i, mv := range analysis.MovesUCI {
		move, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			return nil, fmt.Errorf("explain: decode move %d (%s): %w", i+1, mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("explain: apply move %d (%s): %w", i+1, mv, err)
		}
		fens = append(fens, game.FEN())
	}

	var book *opening.BookECO
	requests := make([]domain.ExplanationRequest, 0, len(analysis.MovesUCI))
	for ply := 1; ply <= len(analysis.MovesUCI); ply++ {
		evalAfter := analysis.Positions[ply]
		class := evalAfter.Classification
		if class == "" {
			continue
		}

		evalBefore := analysis.Positions[ply-1]
		winBefore := evalBefore.WinPercent()
		winAfter := evalAfter.WinPercent()
		whiteMoved := ply%2 == 1
		delta := winAfter - winBefore
		if !whiteMoved {
			delta = -delta
		}
		if !ShouldExplain(class, delta, settings) {
			continue
		}

		openingName := strings.TrimSpace(evalAfter.Opening)
		if openingName == "" {
			if book == nil {
				book = opening.NewBookECO()
			}
			openingName = ecoTitle(book, game, ply)
		}

		requests = append(requests, domain.ExplanationRequest{
			GameID:         analysis.GameID,
			FEN:            fens[ply-1],
			MoveUCI:        strings.ToLower(strings.TrimSpace(analysis.MovesUCI[ply-1])),
			MoveIndex:      ply,
			EvalBefore:     evalBefore,
			EvalAfter:      evalAfter,
			Classification: class,
			Opening:        openingName,
			WinBefore:      winBefore,
			WinAfter:       winAfter,
			WhiteMoved:     whiteMoved,
		})
	}
	return requests, nil
}

func ecoTitle(book *opening.BookECO, game *nchess.Game, ply int) string {
	if book == nil || game == nil {
		return ""
	}
	moves := game.Moves()
	if ply > len(moves) {
		ply = len(moves)
	}
	if eco := book.Find(moves[:ply]); eco != nil {
		return eco.Title()
	}
	return ""
}
