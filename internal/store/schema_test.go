package store

import (
	"database/sql"
	"slices"
	"testing"

	"entgo.io/ent"

	entschema "github.com/abhisek/codecoach/ent/schema"
)

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table info %s: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func fieldNames(fields []ent.Field, mixins ...ent.Mixin) []string {
	for _, m := range mixins {
		fields = append(fields, m.Fields()...)
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Descriptor().Name
	}
	return names
}

// Every field of the schema must exist as a column; the only extra columns
// allowed are the integer row keys.
func TestTablesMatchSchema(t *testing.T) {
	db := openTestStore(t).DB()

	tests := []struct {
		table  string
		fields []string
		keys   []string
	}{
		{"problems", fieldNames(entschema.Problem{}.Fields()), []string{"seq"}},
		{"llm_request_events", fieldNames(entschema.LLMRequestEvent{}.Fields(), entschema.LLMRequestEvent{}.Mixin()...), []string{"id"}},
		{"blobs", fieldNames(entschema.Blob{}.Fields()), nil},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			cols := tableColumns(t, db, tt.table)
			for _, f := range tt.fields {
				if !slices.Contains(cols, f) {
					t.Errorf("column %q missing from %s", f, tt.table)
				}
			}
			for _, c := range cols {
				if !slices.Contains(tt.fields, c) && !slices.Contains(tt.keys, c) {
					t.Errorf("column %q of %s has no schema field", c, tt.table)
				}
			}
		})
	}
}
