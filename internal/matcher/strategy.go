package matcher

import "connectgraph/internal/domain"

// Strategy computes a similarity score and a human-readable rationale
// between one outgoing and one incoming Connection already known to
// share a technology family. The exact similarity function is
// delegated per technology (spec §4.7); Registry supplies the
// default token-overlap fallback for any family without a dedicated
// Strategy.
type Strategy interface {
	Similarity(outgoing, incoming domain.Connection) (score float64, rationale string)
}

// Registry maps a canonical technology family (as produced by
// NormalizeTechnology, without its "/METHOD" suffix) to the Strategy
// used to score candidates in that family.
type Registry map[string]Strategy

// DefaultRegistry returns the built-in family-to-strategy bindings.
func DefaultRegistry() Registry {
	return Registry{
		"HTTP":         httpStrategy{},
		"MessageQueue": messagingStrategy{},
	}
}

// For returns the strategy bound to family, or the token-overlap
// default if none is registered.
func (r Registry) For(family string) Strategy {
	if s, ok := r[family]; ok {
		return s
	}
	return defaultStrategy{}
}

// familyOf strips a "/METHOD" suffix from a normalized technology
// name, e.g. "HTTP/GET" -> "HTTP".
func familyOf(technologyName string) string {
	for i := 0; i < len(technologyName); i++ {
		if technologyName[i] == '/' {
			return technologyName[:i]
		}
	}
	return technologyName
}
