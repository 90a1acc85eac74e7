// Package entschema is declarative schema documentation for the
// store's tables, kept in ent's schema DSL the way the teacher keeps
// its gateway schema (internal/gateway/ent/schema) even though this
// store's runtime path is raw database/sql, not ent's generated
// client; see DESIGN.md for why codegen isn't run here. These types
// are never instantiated at runtime; they exist so the table shape in
// postgres.go has one canonical, typed description instead of drifting
// SQL comments.
package entschema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Project mirrors the projects table.
type Project struct {
	ent.Schema
}

func (Project) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.String("name"),
		field.String("root_path").Default(""),
		field.String("description").Default(""),
	}
}

func (Project) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("files", File.Type),
	}
}
