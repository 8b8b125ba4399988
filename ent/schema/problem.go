// Package schema describes the tables the store creates. The store's DDL is
// checked against these definitions in its tests.
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Problem is a curated coding exercise with its reference solution.
type Problem struct {
	ent.Schema
}

func (Problem) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable().
			Comment("UUID assigned on creation"),
		field.String("title").
			Default(""),
		field.Text("description").
			Default(""),
		field.Text("solution_code").
			Default("").
			Comment("Reference solution, never shown to the learner"),
		field.Int("sort_order").
			Default(0).
			Comment("Position in the solve order; ties keep insertion order"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (Problem) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("sort_order"),
	}
}
