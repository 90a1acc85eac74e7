package splitter

import (
	"encoding/json"

	"connectgraph/internal/domain"
)

func directionFromWire(s string) domain.Direction {
	if s == string(domain.DirectionIncoming) {
		return domain.DirectionIncoming
	}
	return domain.DirectionOutgoing
}

// wireRequest/wireResponse are the JSON shapes defined in spec §6,
// used by every provider-backed Splitter implementation to talk to
// its underlying LLM.
type wireSnippet struct {
	FilePath         string  `json:"file_path"`
	Language         string  `json:"language"`
	StartLine        int     `json:"start_line"`
	EndLine          int     `json:"end_line"`
	Code             string  `json:"code"`
	PriorDescription *string `json:"prior_description,omitempty"`
}

type wireRequest struct {
	ProjectDescription string        `json:"project_description"`
	Snippets            []wireSnippet `json:"snippets"`
}

type wireConnection struct {
	SourceIndex    int    `json:"source_index"`
	Direction      string `json:"direction"`
	StartLine      int    `json:"start_line"`
	EndLine        int    `json:"end_line"`
	CodeSnippet    string `json:"code_snippet"`
	Description    string `json:"description"`
	TechnologyName string `json:"technology_name"`
}

type wireResponse struct {
	Connections []wireConnection `json:"connections"`
}

func toWireRequest(req Request) wireRequest {
	w := wireRequest{ProjectDescription: req.ProjectDescription}
	for _, s := range req.Snippets {
		w.Snippets = append(w.Snippets, wireSnippet{
			FilePath:         s.FilePath,
			Language:         s.Language,
			StartLine:        s.StartLine,
			EndLine:          s.EndLine,
			Code:             s.Code,
			PriorDescription: s.PriorDescription,
		})
	}
	return w
}

func fromWireResponse(raw json.RawMessage) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return Response{}, ErrInvalidJSON
	}
	resp := Response{}
	for _, c := range w.Connections {
		resp.Connections = append(resp.Connections, DerivedConnection{
			SourceIndex:    c.SourceIndex,
			Direction:      directionFromWire(c.Direction),
			StartLine:      c.StartLine,
			EndLine:        c.EndLine,
			CodeSnippet:    c.CodeSnippet,
			Description:    c.Description,
			TechnologyName: c.TechnologyName,
		})
	}
	return resp, nil
}
