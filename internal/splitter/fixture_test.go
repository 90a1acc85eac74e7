package splitter

import (
	"context"
	"testing"

	"connectgraph/internal/domain"
)

func TestFixtureSplitter_RecordThenReplay(t *testing.T) {
	dir := t.TempDir()
	f := NewFixtureSplitter(dir)

	req := Request{
		ProjectDescription: "desc",
		Snippets: []SnippetRequest{
			{SourceIndex: 0, FilePath: "f.go", Language: "go", StartLine: 1, EndLine: 2, Code: "a\nb"},
		},
	}
	want := Response{Connections: []DerivedConnection{
		{SourceIndex: 0, Direction: domain.DirectionOutgoing, StartLine: 1, EndLine: 2, CodeSnippet: "a\nb", Description: "d", TechnologyName: "HTTP/GET"},
	}}

	if err := f.Record(req, want); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := f.Split(context.Background(), req)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got.Connections) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(got.Connections))
	}
	gc := got.Connections[0]
	wc := want.Connections[0]
	if gc.CodeSnippet != wc.CodeSnippet || gc.TechnologyName != wc.TechnologyName || gc.Direction != wc.Direction {
		t.Fatalf("replayed connection mismatch: got %+v, want %+v", gc, wc)
	}
}

func TestFixtureSplitter_MissingFixtureIsPermanent(t *testing.T) {
	f := NewFixtureSplitter(t.TempDir())
	req := Request{Snippets: []SnippetRequest{{FilePath: "f.go", StartLine: 1, EndLine: 1, Code: "a"}}}

	_, err := f.Split(context.Background(), req)
	if err == nil {
		t.Fatalf("expected error for missing fixture")
	}
	if _, ok := err.(*PermanentError); !ok {
		t.Fatalf("expected *PermanentError, got %T: %v", err, err)
	}
}
