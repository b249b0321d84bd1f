package generator

import (
	"fmt"
	"strings"

	"github.com/fairlie/keel/internal/contract"
)

var sqlTypes = map[string]string{
	contract.TypeString:   "TEXT",
	contract.TypeNumber:   "NUMERIC",
	contract.TypeInteger:  "INTEGER",
	contract.TypeBoolean:  "BOOLEAN",
	contract.TypeDatetime: "TIMESTAMPTZ",
	contract.TypeDate:     "DATE",
	contract.TypeArray:    "JSONB",
	contract.TypeObject:   "JSONB",
}

func sqlType(t string) string {
	if st, ok := sqlTypes[t]; ok {
		return st
	}
	return "TEXT"
}

// renderSQL emits one CREATE TABLE per relational entity. Table names
// are the singular snake_case slug of the entity name; collection
// names on the document side are plural.
func renderSQL(entities []contract.EntitySpec) []byte {
	var b strings.Builder
	b.WriteString("-- Relational schema for entities routed to postgres.\n")
	b.WriteString("-- Rendered from ui-contract.json and storage-plan.json.\n")
	for _, e := range entities {
		b.WriteString("\n")
		fmt.Fprintf(&b, "-- %s\n", e.Name)
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", toSnakeCase(e.Name))
		cols := tableColumns(e)
		for i, col := range cols {
			b.WriteString("    " + col)
			if i < len(cols)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(");\n")
	}
	return []byte(b.String())
}

// tableColumns maps the declared fields to column definitions and
// ensures the server-managed id, created_at, and updated_at columns
// exist even when the entity never declared them.
func tableColumns(e contract.EntitySpec) []string {
	var cols []string
	var hasID, hasCreated, hasUpdated bool
	for _, f := range e.Fields {
		col := toSnakeCase(f.Name)
		switch col {
		case "id":
			hasID = true
			cols = append(cols, fmt.Sprintf("id %s PRIMARY KEY", sqlType(f.Type)))
			continue
		case "created_at":
			hasCreated = true
		case "updated_at":
			hasUpdated = true
		}
		cols = append(cols, columnDef(col, f))
	}
	if !hasID {
		cols = append([]string{"id TEXT PRIMARY KEY"}, cols...)
	}
	if !hasCreated {
		cols = append(cols, "created_at TIMESTAMPTZ NOT NULL DEFAULT now()")
	}
	if !hasUpdated {
		cols = append(cols, "updated_at TIMESTAMPTZ NOT NULL DEFAULT now()")
	}
	return cols
}

func columnDef(col string, f contract.FieldSpec) string {
	def := col + " " + sqlType(f.Type)
	if f.Required && !f.Nullable {
		def += " NOT NULL"
	}
	switch col {
	case "updated_at":
		def += " DEFAULT now()"
	case "created_at":
		// A created_at carrying a schema description is user-supplied
		// data, not a server-managed timestamp, so it keeps no default.
		if _, userSupplied := f.Raw["description"]; !userSupplied {
			def += " DEFAULT now()"
		}
	}
	return def
}
