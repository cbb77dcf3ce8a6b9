package explain

import (
	"math"

	"github.com/boardwise/movecoach/internal/domain"
)

const (
	DefaultMaxLength     = 150
	DefaultMinEvalChange = 5.0
)

// Settings control which moves get explained and how long the
// explanation text may be. The zero value means defaults.
type Settings struct {
	MaxLength        int
	ExplainExcellent bool
	ExplainOpening   bool
	MinEvalChange    float64
}

func DefaultSettings() Settings {
	return Settings{MaxLength: DefaultMaxLength, MinEvalChange: DefaultMinEvalChange}
}

func (s Settings) withDefaults() Settings {
	if s.MaxLength <= 0 {
		s.MaxLength = DefaultMaxLength
	}
	if s.MinEvalChange <= 0 {
		s.MinEvalChange = DefaultMinEvalChange
	}
	return s
}

// ShouldExplain decides whether a classified move deserves an
// explanation. evalChangePercent is the win-probability swing of the
// move from the mover's point of view; the threshold rule only applies
// to moves no earlier rule claims, and it is inclusive.
func ShouldExplain(class domain.MoveClassification, evalChangePercent float64, settings Settings) bool {
	settings = settings.withDefaults()
	switch class {
	case domain.ClassificationBlunder, domain.ClassificationMistake, domain.ClassificationInaccuracy:
		return true
	case domain.ClassificationPerfect, domain.ClassificationSplendid:
		return true
	case domain.ClassificationBest:
		return true
	case domain.ClassificationExcellent:
		return settings.ExplainExcellent
	case domain.ClassificationOpening:
		return settings.ExplainOpening
	}
	return math.Abs(evalChangePercent) >= settings.MinEvalChange
}
