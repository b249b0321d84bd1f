package classifier

import (
	"fmt"

	"github.com/fairlie/keel/internal/contract"
)

// docToMongoCondition reports whether a field pushes its entity to the
// document store under the docToMongo strategy, and the reason why.
// Any structured field qualifies: open maps, objects with nested
// properties, and arrays of objects.
func docToMongoCondition(f contract.FieldSpec) (string, bool) {
	switch f.Type {
	case contract.TypeObject:
		if truthy(f.Raw["additionalProperties"]) {
			return fmt.Sprintf("field %q is an open map (additionalProperties)", f.Name), true
		}
		if props, ok := f.Raw["properties"].(map[string]interface{}); ok && len(props) > 0 {
			return fmt.Sprintf("field %q is an object with nested properties", f.Name), true
		}
	case contract.TypeArray:
		items, ok := f.Raw["items"].(map[string]interface{})
		if !ok {
			return "", false
		}
		if t, _ := items["type"].(string); t == "object" {
			return fmt.Sprintf("field %q is an array of objects", f.Name), true
		}
		if _, ok := items["properties"]; ok {
			return fmt.Sprintf("field %q is an array of objects with nested properties", f.Name), true
		}
	}
	return "", false
}

// jsonbFirstCondition reports whether a field pushes its entity to the
// document store under the postgresJsonbFirst strategy. Only deep
// nesting qualifies: arrays of objects, or objects nested more than
// one level. Flat objects and open maps stay relational as JSONB
// columns.
func jsonbFirstCondition(f contract.FieldSpec) (string, bool) {
	switch f.Type {
	case contract.TypeArray:
		items, ok := f.Raw["items"].(map[string]interface{})
		if !ok {
			return "", false
		}
		t, _ := items["type"].(string)
		_, hasProps := items["properties"]
		if t == "object" || hasProps {
			return fmt.Sprintf("field %q is an array of objects (deep nesting)", f.Name), true
		}
	case contract.TypeObject:
		if props, ok := f.Raw["properties"].(map[string]interface{}); ok && len(props) > 0 {
			if d := schemaDepth(f.Raw); d > 1 {
				return fmt.Sprintf("field %q is a deeply nested object (depth %d)", f.Name, d), true
			}
		}
	}
	return "", false
}

// schemaDepth counts nesting levels in a JSON-schema fragment. A
// schema with no properties has depth 0; each properties level adds
// one. Arrays of primitives add nothing; an array whose items is an
// object schema contributes the depth of that items schema.
func schemaDepth(schema map[string]interface{}) int {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok || len(props) == 0 {
		return 0
	}
	deepest := 0
	for _, v := range props {
		prop, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		child := 0
		switch t, _ := prop["type"].(string); t {
		case "object":
			child = schemaDepth(prop)
		case "array":
			if items, ok := prop["items"].(map[string]interface{}); ok {
				it, _ := items["type"].(string)
				_, hasProps := items["properties"]
				if it == "object" || hasProps {
					child = schemaDepth(items)
				}
			}
		}
		if child > deepest {
			deepest = child
		}
	}
	return 1 + deepest
}

// truthy mirrors loose-schema truthiness: false, zero, empty strings,
// and empty containers do not count as an additionalProperties marker.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}
