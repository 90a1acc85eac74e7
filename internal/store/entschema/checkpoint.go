package entschema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// CheckpointRow mirrors the checkpoint_rows queue table (spec §4.2, §6).
type CheckpointRow struct {
	ent.Schema
}

func (CheckpointRow) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("project_id"),
		field.String("file_path"),
		field.Enum("change_kind").Values("added", "modified", "deleted"),
		field.String("old_content").Optional().Nillable(),
		field.String("new_content").Optional().Nillable(),
	}
}
