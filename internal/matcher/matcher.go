// Package matcher implements the Cross-Project Matcher (spec §4.7),
// redesigned from the original's LLM-driven phase5_connection_matching
// prompt into a deterministic, per-technology Strategy pairing so
// re-running it against identical inputs is idempotent (spec L4).
package matcher

import (
	"sort"

	"connectgraph/internal/domain"
)

// Candidate pairs a Connection with the project it belongs to, since
// the Matcher must never pair two connections from the same project
// (spec §4.7 contract: "candidate incoming connections in other
// projects").
type Candidate struct {
	Connection domain.Connection
	ProjectID  int64
}

// Match computes every accepted mapping between outgoing and
// incoming candidates above threshold, using registry to pick a
// similarity Strategy per technology family. Inputs are sorted by
// connection ID ascending before pairing, and ties are broken the
// same way, so repeated calls on the same inputs are idempotent
// (spec L4).
func Match(outgoing, incoming []Candidate, registry Registry, threshold float64) []domain.ConnectionMapping {
	out := append([]Candidate(nil), outgoing...)
	in := append([]Candidate(nil), incoming...)
	sort.Slice(out, func(i, j int) bool { return out[i].Connection.ID < out[j].Connection.ID })
	sort.Slice(in, func(i, j int) bool { return in[i].Connection.ID < in[j].Connection.ID })

	var mappings []domain.ConnectionMapping
	for _, o := range out {
		oTech := NormalizeTechnology(o.Connection.TechnologyName)
		strategy := registry.For(familyOf(oTech))

		for _, i := range in {
			if i.ProjectID == o.ProjectID {
				continue
			}
			iTech := NormalizeTechnology(i.Connection.TechnologyName)
			if iTech != oTech {
				continue
			}

			score, rationale := strategy.Similarity(o.Connection, i.Connection)
			if score < threshold {
				continue
			}

			mappings = append(mappings, domain.ConnectionMapping{
				OutgoingConnectionID: o.Connection.ID,
				IncomingConnectionID: i.Connection.ID,
				Confidence:           score,
				TechnologyName:       oTech,
				Rationale:            rationale,
			})
		}
	}
	return mappings
}
