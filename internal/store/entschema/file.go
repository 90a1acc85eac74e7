package entschema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// File mirrors the files table: unique by (project_id, path).
type File struct {
	ent.Schema
}

func (File) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("project_id"),
		field.String("path"),
		field.String("language").Default(""),
		field.String("content_hash").Default(""),
	}
}

func (File) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("project", Project.Type).Ref("files").Unique().Required(),
		edge.To("connections", Connection.Type),
	}
}
