package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// Blob is an opaque value stored under a fixed name. The client keeps its
// conversation history in one.
type Blob struct {
	ent.Schema
}

func (Blob) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").
			Unique().
			Immutable(),
		field.Bytes("data"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}
