package collector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"FinVision/internal/model"
)

var jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ParseJSON decodes the JSON object embedded in free-form model output into v.
// It tries the whole text, then a ```json fenced block, then the span from the
// first '{' to the last '}'. The first object candidate that decodes wins;
// anything else, including a bare null, is skipped.
func ParseJSON(text string, v any) error {
	for _, candidate := range jsonCandidates(text) {
		candidate = strings.TrimSpace(candidate)
		if !strings.HasPrefix(candidate, "{") {
			continue
		}
		b := []byte(candidate)
		if !json.Valid(b) {
			continue
		}
		if err := json.Unmarshal(b, v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w in model output %q", model.ErrParse, preview(text, 80))
}

func jsonCandidates(text string) []string {
	candidates := []string{text}
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	return candidates
}

func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
