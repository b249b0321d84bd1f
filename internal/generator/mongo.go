package generator

import (
	"fmt"
	"strings"

	"github.com/fairlie/keel/internal/contract"
)

var mongoTypes = map[string]string{
	contract.TypeString:   "string",
	contract.TypeNumber:   "number",
	contract.TypeInteger:  "integer",
	contract.TypeBoolean:  "boolean",
	contract.TypeDatetime: "string",
	contract.TypeDate:     "string",
	contract.TypeArray:    "array",
	contract.TypeObject:   "object",
}

func mongoType(t string) string {
	if mt, ok := mongoTypes[t]; ok {
		return mt
	}
	return "string"
}

// renderMongoSchemas builds the mongo-schemas.json document: one JSON
// schema per collection, keyed by the plural snake_case collection
// name. The entity id field maps onto _id and is never emitted twice.
func renderMongoSchemas(entities []contract.EntitySpec) ([]byte, error) {
	schemas := make(map[string]any, len(entities))
	for _, e := range entities {
		schemas[toPluralSnakeCase(e.Name)] = collectionSchema(e)
	}
	return marshalIndented(schemas)
}

func collectionSchema(e contract.EntitySpec) map[string]any {
	props := map[string]any{
		"_id": map[string]any{"type": "string"},
	}
	required := []string{"_id"}
	for _, f := range e.Fields {
		if f.Name == "id" || f.Name == "_id" {
			continue
		}
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// fieldSchema keeps the structural parts of the raw schema (items,
// properties, additionalProperties) and drops everything else the
// scanner carried along.
func fieldSchema(f contract.FieldSpec) map[string]any {
	schema := map[string]any{"type": mongoType(f.Type)}
	switch f.Type {
	case contract.TypeArray:
		if items, ok := f.Raw["items"].(map[string]any); ok {
			schema["items"] = items
		}
	case contract.TypeObject:
		if props, ok := f.Raw["properties"].(map[string]any); ok {
			schema["properties"] = props
		}
		if ap, ok := f.Raw["additionalProperties"]; ok {
			schema["additionalProperties"] = ap
		}
	}
	return schema
}

func renderMongoCollections(entities []contract.EntitySpec) []byte {
	var b strings.Builder
	b.WriteString("# MongoDB Collections\n\n")
	b.WriteString("Collections for entities routed to the document store.\n")
	b.WriteString("An entity `id` field is stored as the Mongo `_id`.\n\n")
	for _, e := range entities {
		fmt.Fprintf(&b, "## `%s`\n\n", toPluralSnakeCase(e.Name))
		fmt.Fprintf(&b, "- Source entity: `%s` (%s)\n", e.Name, e.SourcePath)
		fmt.Fprintf(&b, "- Declared fields: %d\n\n", len(e.Fields))
	}
	return []byte(b.String())
}
