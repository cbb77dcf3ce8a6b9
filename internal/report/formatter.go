package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/explain"
)

const (
	gameHeader   = "♞ Game review"
	issuesHeader = "⚠️ Issues"

	detailIndent = "   "
	timeLayout   = "2006-01-02 15:04 MST"
)

// Formatter renders review aggregates into plain-text reports.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// Game renders the stored review of one game. The analysis is optional;
// when present the move lines carry the analyzer's classification tag
// and the White win-probability swing, and the coverage line shows the
// game's full move count.
func (f *Formatter) Game(ge *domain.GameExplanations, analysis *domain.GameAnalysis) string {
	if ge == nil {
		return "No review found for this game."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s #%s\n", gameHeader, ge.GameID))
	if analysis != nil {
		if players := formatPlayers(analysis.White, analysis.Black); players != "" {
			sb.WriteString(fmt.Sprintf("• Players: %s\n", players))
		}
	}
	if ge.Opening != "" {
		sb.WriteString(fmt.Sprintf("• Opening: %s\n", ge.Opening))
	}
	if ge.Model != "" {
		sb.WriteString(fmt.Sprintf("• Model: %s\n", ge.Model))
	}
	if ge.RunID != "" {
		sb.WriteString(fmt.Sprintf("• Run: %s\n", ge.RunID))
	}
	if !ge.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("• Generated: %s\n", formatShortTime(ge.CreatedAt)))
	}
	sb.WriteString(fmt.Sprintf("• Explained: %s\n", formatCoverage(len(ge.Moves), analysis)))

	for _, idx := range sortedMoveIndexes(ge.Moves) {
		expl := ge.Moves[idx]
		sb.WriteString("\n")
		sb.WriteString(moveLine(expl, analysis))
		sb.WriteString("\n")
		if text := strings.TrimSpace(expl.Explanation); text != "" {
			sb.WriteString(detailIndent + text + "\n")
		}
		if len(expl.Themes) > 0 {
			sb.WriteString(detailIndent + "Themes: " + strings.Join(expl.Themes, ", ") + "\n")
		}
		if reason := strings.TrimSpace(expl.Rationale); reason != "" {
			sb.WriteString(detailIndent + "Reason: " + reason + "\n")
		}
	}

	if len(ge.Errors) > 0 {
		sb.WriteString("\n")
		sb.WriteString(issuesHeader)
		sb.WriteString("\n")
		for _, item := range ge.Errors {
			sb.WriteString("• " + item + "\n")
		}
	}
	return sb.String()
}

// Progress renders one batch snapshot as a single status line.
func (f *Formatter) Progress(p domain.BatchProgress) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("reviewed %d/%d", p.Completed, p.Total))
	if p.LastMove != "" {
		sb.WriteString(" | last " + p.LastMove)
	}
	if n := len(p.Errors); n > 0 {
		sb.WriteString(fmt.Sprintf(" | %d failed", n))
	}
	return sb.String()
}

func moveLine(expl domain.MoveExplanation, analysis *domain.GameAnalysis) string {
	move := expl.MoveSAN
	if move == "" {
		move = expl.MoveUCI
	}
	line := explain.MoveLabel(expl.MoveIndex, move)
	if class := classificationAt(analysis, expl.MoveIndex); class != "" {
		line += fmt.Sprintf(" [%s]", class)
	}
	if swing := formatSwing(analysis, expl.MoveIndex); swing != "" {
		line += " | " + swing
	}
	return line
}

func classificationAt(analysis *domain.GameAnalysis, moveIndex int) domain.MoveClassification {
	if analysis == nil || moveIndex < 1 || moveIndex >= len(analysis.Positions) {
		return ""
	}
	return analysis.Positions[moveIndex].Classification
}

// formatSwing renders the White win probability across the move, for
// example "54.2% -> 38.0%".
func formatSwing(analysis *domain.GameAnalysis, moveIndex int) string {
	if analysis == nil || moveIndex < 1 || moveIndex >= len(analysis.Positions) {
		return ""
	}
	before := analysis.Positions[moveIndex-1].WinPercent()
	after := analysis.Positions[moveIndex].WinPercent()
	return fmt.Sprintf("%.1f%% -> %.1f%%", before, after)
}

func formatCoverage(explained int, analysis *domain.GameAnalysis) string {
	if analysis != nil && len(analysis.MovesUCI) > 0 {
		return fmt.Sprintf("%d of %d moves", explained, len(analysis.MovesUCI))
	}
	if explained == 1 {
		return "1 move"
	}
	return fmt.Sprintf("%d moves", explained)
}

func formatPlayers(white, black string) string {
	white = strings.TrimSpace(white)
	black = strings.TrimSpace(black)
	if white == "" && black == "" {
		return ""
	}
	if white == "" {
		white = "White"
	}
	if black == "" {
		black = "Black"
	}
	return white + " vs " + black
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func sortedMoveIndexes(moves map[int]domain.MoveExplanation) []int {
	keys := make([]int, 0, len(moves))
	for idx := range moves {
		keys = append(keys, idx)
	}
	sort.Ints(keys)
	return keys
}
