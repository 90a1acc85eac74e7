package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"connectgraph/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		tokens[t] = true
	}
	return tokens
}

// defaultStrategy is the fallback similarity function (spec §4.7):
// Jaccard token-overlap on the two connections' descriptions.
type defaultStrategy struct{}

func (defaultStrategy) Similarity(outgoing, incoming domain.Connection) (float64, string) {
	a := tokenize(outgoing.Description)
	b := tokenize(incoming.Description)
	if len(a) == 0 || len(b) == 0 {
		return 0, "no description tokens to compare"
	}

	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0, "no description tokens to compare"
	}
	score := float64(intersection) / float64(union)
	return score, fmt.Sprintf("token overlap %.2f over descriptions", score)
}
