package matcher

import (
	"reflect"
	"testing"

	"connectgraph/internal/domain"
)

func TestMatch_S5_CrossProjectHTTPMatch(t *testing.T) {
	outgoing := []Candidate{
		{ProjectID: 1, Connection: domain.Connection{ID: 10, Direction: domain.DirectionOutgoing, TechnologyName: "HTTP/GET", Description: "GET request to /health endpoint"}},
	}
	incoming := []Candidate{
		{ProjectID: 2, Connection: domain.Connection{ID: 20, Direction: domain.DirectionIncoming, TechnologyName: "HTTP/GET", Description: "handles GET /health"}},
	}

	mappings := Match(outgoing, incoming, DefaultRegistry(), 0.5)
	if len(mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d: %+v", len(mappings), mappings)
	}
	m := mappings[0]
	if m.TechnologyName != "HTTP/GET" {
		t.Fatalf("technology_name = %q, want HTTP/GET", m.TechnologyName)
	}
	if m.Confidence < 0.5 {
		t.Fatalf("confidence = %f, want >= 0.5", m.Confidence)
	}
}

func TestMatch_SameProjectNeverMatches(t *testing.T) {
	outgoing := []Candidate{
		{ProjectID: 1, Connection: domain.Connection{ID: 10, TechnologyName: "HTTP/GET", Description: "GET /health"}},
	}
	incoming := []Candidate{
		{ProjectID: 1, Connection: domain.Connection{ID: 20, TechnologyName: "HTTP/GET", Description: "GET /health"}},
	}
	mappings := Match(outgoing, incoming, DefaultRegistry(), 0.1)
	if len(mappings) != 0 {
		t.Fatalf("expected no mappings across the same project, got %+v", mappings)
	}
}

func TestMatch_L4_Deterministic(t *testing.T) {
	outgoing := []Candidate{
		{ProjectID: 1, Connection: domain.Connection{ID: 10, TechnologyName: "HTTP/GET", Description: "GET /health"}},
		{ProjectID: 1, Connection: domain.Connection{ID: 11, TechnologyName: "HTTP/GET", Description: "GET /status"}},
	}
	incoming := []Candidate{
		{ProjectID: 2, Connection: domain.Connection{ID: 20, TechnologyName: "HTTP/GET", Description: "handles GET /health"}},
		{ProjectID: 2, Connection: domain.Connection{ID: 21, TechnologyName: "HTTP/GET", Description: "handles GET /status"}},
	}

	first := Match(outgoing, incoming, DefaultRegistry(), 0.3)
	second := Match(outgoing, incoming, DefaultRegistry(), 0.3)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical mappings across runs, got %+v vs %+v", first, second)
	}
}
