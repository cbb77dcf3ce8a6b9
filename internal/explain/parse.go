package explain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boardwise/movecoach/internal/domain"
)

// modelReply is the JSON shape the system prompt asks the model for.
type modelReply struct {
	Explanation string   `json:"explanation"`
	Themes      []string `json:"themes"`
	Reason      string   `json:"reason"`
}

// ParseResponse interprets a raw model reply. It makes one decode
// attempt (code fence stripped, then JSON); if that fails or yields an
// empty explanation the raw text itself becomes the explanation, so a
// reply is never lost. The explanation is bounded by
// settings.MaxLength in both paths.
func ParseResponse(raw string, req domain.ExplanationRequest, settings Settings) domain.MoveExplanation {
	settings = settings.withDefaults()
	out := domain.MoveExplanation{
		MoveUCI:       strings.ToLower(strings.TrimSpace(req.MoveUCI)),
		MoveSAN:       SANMove(req.FEN, req.MoveUCI),
		MoveIndex:     req.MoveIndex,
		Themes:        []string{},
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: domain.ExplanationSchemaVersion,
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &reply); err == nil && strings.TrimSpace(reply.Explanation) != "" {
		out.Explanation = truncateRunes(strings.TrimSpace(reply.Explanation), settings.MaxLength)
		out.Themes = normalizeThemes(reply.Themes)
		out.Rationale = strings.TrimSpace(reply.Reason)
		return out
	}

	class := req.Classification
	if class == "" {
		class = "unclassified"
	}
	out.Explanation = truncateRunes(strings.TrimSpace(raw), settings.MaxLength)
	out.Rationale = fmt.Sprintf("Unstructured reply; move classified as %s.", class)
	return out
}

// stripCodeFence removes a Markdown fence (``` or ```json) wrapped
// around the reply, a habit chat models have even when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func normalizeThemes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
