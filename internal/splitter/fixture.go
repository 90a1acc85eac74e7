package splitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// FixtureSplitter replays recorded Request/Response pairs from disk
// instead of calling a live LLM backend. It is used by tests and by
// local runs against vendored fixtures (e.g. replaying a previously
// recorded batch without network access or an API key). Fixtures are
// stored as protobuf structpb.Struct messages encoded with protojson,
// the same wire shape genai itself builds its request/response
// payloads from, so a fixture recorded from a live GeminiSplitter
// call round-trips byte-for-byte through this type.
type FixtureSplitter struct {
	dir string
}

// NewFixtureSplitter returns a Splitter backed by fixture files under
// dir. A missing fixture for a given Request is a permanent error
// (spec §7, SplitterPermanent): fixture replay never falls back to a
// live call.
func NewFixtureSplitter(dir string) *FixtureSplitter {
	return &FixtureSplitter{dir: dir}
}

func (f *FixtureSplitter) Name() string { return "fixture:" + f.dir }
func (f *FixtureSplitter) Close() error { return nil }

func (f *FixtureSplitter) Split(ctx context.Context, req Request) (Response, error) {
	path := f.fixturePath(req)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Response{}, &PermanentError{Err: fmt.Errorf("splitter: no fixture recorded at %s: %w", path, err)}
	}

	var msg structpb.Struct
	if err := protojson.Unmarshal(raw, &msg); err != nil {
		return Response{}, &PermanentError{Err: fmt.Errorf("splitter: corrupt fixture %s: %w", path, err)}
	}
	respValue, ok := msg.Fields["response"]
	if !ok {
		return Response{}, &PermanentError{Err: fmt.Errorf("splitter: fixture %s missing response", path)}
	}
	rawResp, err := protojson.Marshal(respValue.GetStructValue())
	if err != nil {
		return Response{}, &PermanentError{Err: err}
	}
	return fromWireResponse(rawResp)
}

// Record writes resp as the fixture answer for req, for use by a
// recording harness that wraps a live Splitter and persists its
// answers for later offline replay.
func (f *FixtureSplitter) Record(req Request, resp Response) error {
	reqValue, err := structValueFromWire(toWireRequest(req))
	if err != nil {
		return err
	}
	respValue, err := structValueFromWire(toWireResponseFixture(resp))
	if err != nil {
		return err
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"request":  reqValue,
		"response": respValue,
	}}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	path := f.fixturePath(req)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (f *FixtureSplitter) fixturePath(req Request) string {
	return filepath.Join(f.dir, fixtureKey(req)+".json")
}

func fixtureKey(req Request) string {
	h := sha256.New()
	for _, s := range req.Snippets {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s\x00", s.FilePath, s.StartLine, s.EndLine, s.Code)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// structValueFromWire round-trips v through encoding/json to the
// plain-Go-value shape structpb.NewStruct expects.
func structValueFromWire(v any) (*structpb.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(asMap)
	if err != nil {
		return nil, err
	}
	return structpb.NewStructValue(s), nil
}

func toWireResponseFixture(resp Response) wireResponse {
	w := wireResponse{}
	for _, c := range resp.Connections {
		w.Connections = append(w.Connections, wireConnection{
			SourceIndex:    c.SourceIndex,
			Direction:      string(c.Direction),
			StartLine:      c.StartLine,
			EndLine:        c.EndLine,
			CodeSnippet:    c.CodeSnippet,
			Description:    c.Description,
			TechnologyName: c.TechnologyName,
		})
	}
	return w
}
