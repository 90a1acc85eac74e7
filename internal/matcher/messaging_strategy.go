package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"connectgraph/internal/domain"
)

var (
	queuePattern      = regexp.MustCompile(`(?i)(?:queue|topic)\s*[:\s]\s*["']?([a-zA-Z0-9_.\-]+)`)
	routingKeyPattern = regexp.MustCompile(`(?i)routing\s*key\s*[:\s]\s*["']?([a-zA-Z0-9_.\-]+)`)
)

// messagingStrategy extracts a queue/topic name and routing key from
// each connection's description (spec §4.7's example for messaging).
type messagingStrategy struct{}

func extractMessaging(description string) (queue, routingKey string) {
	if m := queuePattern.FindStringSubmatch(description); len(m) > 1 {
		queue = strings.ToLower(m[1])
	}
	if m := routingKeyPattern.FindStringSubmatch(description); len(m) > 1 {
		routingKey = strings.ToLower(m[1])
	}
	return
}

func (messagingStrategy) Similarity(outgoing, incoming domain.Connection) (float64, string) {
	outQueue, outKey := extractMessaging(outgoing.Description)
	inQueue, inKey := extractMessaging(incoming.Description)

	if outQueue == "" || inQueue == "" {
		score, rationale := defaultStrategy{}.Similarity(outgoing, incoming)
		return score, "no queue name extracted; fell back to " + rationale
	}

	queueMatch := outQueue == inQueue
	keyMatch := outKey != "" && outKey == inKey

	switch {
	case queueMatch && keyMatch:
		return 1.0, fmt.Sprintf("exact queue+routing-key match (%s, %s)", outQueue, outKey)
	case queueMatch:
		return 0.7, fmt.Sprintf("queue match (%s), routing key differs (%s vs %s)", outQueue, outKey, inKey)
	default:
		return 0, fmt.Sprintf("no queue overlap (%s vs %s)", outQueue, inQueue)
	}
}
