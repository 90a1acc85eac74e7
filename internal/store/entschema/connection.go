package entschema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Connection mirrors the connections table (spec §3, invariants I1-I3).
type Connection struct {
	ent.Schema
}

func (Connection) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("file_id"),
		field.Enum("direction").Values("incoming", "outgoing"),
		field.Int("start_line"),
		field.Int("end_line"),
		field.String("code_snippet"),
		field.String("description").Default(""),
		field.String("technology_name").Default(""),
	}
}

func (Connection) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("file", File.Type).Ref("connections").Unique().Required(),
	}
}

// ConnectionMapping mirrors the connection_mappings table, linking one
// outgoing Connection to one incoming Connection with a confidence
// score (spec §4.7).
type ConnectionMapping struct {
	ent.Schema
}

func (ConnectionMapping) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("outgoing_id"),
		field.Int64("incoming_id"),
		field.Float("confidence"),
		field.String("technology_name").Default(""),
		field.String("rationale").Default(""),
	}
}
