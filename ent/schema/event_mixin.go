package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// EventMixin adds the ordering columns of an append-only log. sequence comes
// from the store's global counter, so it never repeats even after rows are
// deleted and their auto-increment ids are reused.
type EventMixin struct {
	mixin.Schema
}

func (EventMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("sequence").
			Unique().
			Immutable().
			Comment("Global append order; listings sort on it"),
		field.Int64("timestamp").
			Immutable().
			Comment("Unix milliseconds when the completion call finished"),
	}
}
