package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"connectgraph/internal/domain"
)

var (
	httpMethodPattern = regexp.MustCompile(`(?i)\b(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b`)
	httpPathPattern    = regexp.MustCompile(`/[A-Za-z0-9_\-/{}.:]+`)
)

// httpStrategy extracts an HTTP method and path from each
// connection's description and scores the pair, per spec §4.7's
// example ("path, method for HTTP").
type httpStrategy struct{}

func extractHTTP(description string) (method, path string) {
	if m := httpMethodPattern.FindString(description); m != "" {
		method = strings.ToUpper(m)
	}
	if p := httpPathPattern.FindString(description); p != "" {
		path = strings.TrimRight(p, "/.,;:")
	}
	return
}

func (httpStrategy) Similarity(outgoing, incoming domain.Connection) (float64, string) {
	outMethod, outPath := extractHTTP(outgoing.Description)
	inMethod, inPath := extractHTTP(incoming.Description)

	if outPath == "" || inPath == "" {
		score, rationale := defaultStrategy{}.Similarity(outgoing, incoming)
		return score, "no path extracted; fell back to " + rationale
	}

	methodMatch := outMethod != "" && outMethod == inMethod
	pathMatch := outPath == inPath

	switch {
	case pathMatch && methodMatch:
		return 1.0, fmt.Sprintf("exact method+path match (%s %s)", outMethod, outPath)
	case pathMatch:
		return 0.75, fmt.Sprintf("path match (%s), method differs (%s vs %s)", outPath, outMethod, inMethod)
	case methodMatch && strings.HasPrefix(inPath, outPath):
		return 0.5, fmt.Sprintf("method match (%s), path prefix (%s -> %s)", outMethod, outPath, inPath)
	default:
		return 0, fmt.Sprintf("no path/method overlap (%s %s vs %s %s)", outMethod, outPath, inMethod, inPath)
	}
}
