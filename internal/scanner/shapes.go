package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/fairlie/keel/internal/contract"
)

// errUnknownShape is recorded per file when a document matches none of
// the four entity shapes.
var errUnknownShape = errors.New("unrecognized entity document shape")

// ParseEntityBytes decodes a candidate entity document and normalizes it
// against the known shapes, tried in fixed precedence order:
//
//  1. fields-array    {"name":"Recipe","fields":[{"name":"id",...}]}
//  2. key-map         {"id":"string","title":"string"}
//  3. embedded-schema {"entity":"Recipe","schema":{"id":{"type":"uuid"}}}
//  4. json-schema     {"title":"Recipe","type":"object","properties":{...}}
//
// It never panics; undecodable or unrecognized documents return an error
// for the caller to record as a per-file failure.
func ParseEntityBytes(data []byte, relPath string) (contract.EntitySpec, error) {
	var root interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return contract.EntitySpec{}, fmt.Errorf("invalid JSON: %v", err)
	}
	doc, ok := root.(map[string]interface{})
	if !ok {
		return contract.EntitySpec{}, errUnknownShape
	}

	if spec, ok := parseFieldsArray(doc, relPath); ok {
		return spec, nil
	}
	if spec, ok := parseKeyMap(doc, data, relPath); ok {
		return spec, nil
	}
	if spec, ok := parseEmbeddedSchema(doc, data, relPath); ok {
		return spec, nil
	}
	if spec, ok := parseJSONSchema(doc, data, relPath); ok {
		return spec, nil
	}
	return contract.EntitySpec{}, errUnknownShape
}

// parseFieldsArray handles documents with an explicit fields list. Items
// without a name are skipped rather than failing the document.
func parseFieldsArray(doc map[string]interface{}, relPath string) (contract.EntitySpec, bool) {
	rawFields, ok := doc["fields"].([]interface{})
	if !ok {
		return contract.EntitySpec{}, false
	}
	fields := make([]contract.FieldSpec, 0, len(rawFields))
	for _, item := range rawFields {
		def, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, ok := def["name"].(string)
		if !ok || name == "" {
			continue
		}
		fields = append(fields, contract.FieldSpec{
			Name:     name,
			Type:     contract.NormalizeFieldType(stringAt(def, "type")),
			Required: boolAt(def, "required", false),
			Nullable: boolAt(def, "nullable", false),
			Raw:      def,
		})
	}
	name := stringAt(doc, "name")
	if name == "" {
		name = stem(relPath)
	}
	return contract.EntitySpec{
		Name:          name,
		SourcePath:    relPath,
		Fields:        fields,
		Relationships: relationshipList(doc["relationships"]),
		RawShapeHint:  contract.ShapeFieldsArray,
	}, true
}

// parseKeyMap handles flat maps of field name to type name. Keys with a
// leading underscore are metadata and excluded; the shape matches only
// when every remaining value is a string.
func parseKeyMap(doc map[string]interface{}, data []byte, relPath string) (contract.EntitySpec, bool) {
	for k, v := range doc {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if _, ok := v.(string); !ok {
			return contract.EntitySpec{}, false
		}
	}
	fields := []contract.FieldSpec{}
	for _, k := range orderedKeys(data) {
		if strings.HasPrefix(k, "_") {
			continue
		}
		typeName, ok := doc[k].(string)
		if !ok {
			continue
		}
		fields = append(fields, contract.FieldSpec{
			Name:     k,
			Type:     contract.NormalizeFieldType(typeName),
			Required: true,
			Nullable: false,
			Raw:      map[string]interface{}{},
		})
	}
	return contract.EntitySpec{
		Name:          stem(relPath),
		SourcePath:    relPath,
		Fields:        fields,
		Relationships: []map[string]interface{}{},
		RawShapeHint:  contract.ShapeKeyMap,
	}, true
}

// parseEmbeddedSchema handles documents carrying a schema map whose
// values are either a type string or a {type, required, nullable} object.
func parseEmbeddedSchema(doc map[string]interface{}, data []byte, relPath string) (contract.EntitySpec, bool) {
	schema, ok := doc["schema"].(map[string]interface{})
	if !ok {
		return contract.EntitySpec{}, false
	}
	fields := make([]contract.FieldSpec, 0, len(schema))
	for _, k := range orderedKeys(data, "schema") {
		switch def := schema[k].(type) {
		case map[string]interface{}:
			fields = append(fields, contract.FieldSpec{
				Name:     k,
				Type:     contract.NormalizeFieldType(stringAt(def, "type")),
				Required: boolAt(def, "required", true),
				Nullable: boolAt(def, "nullable", false),
				Raw:      def,
			})
		case string:
			fields = append(fields, contract.FieldSpec{
				Name:     k,
				Type:     contract.NormalizeFieldType(def),
				Required: true,
				Nullable: false,
				Raw:      map[string]interface{}{},
			})
		}
	}
	name := stringAt(doc, "entity")
	if name == "" {
		name = stem(relPath)
	}
	return contract.EntitySpec{
		Name:          name,
		SourcePath:    relPath,
		Fields:        fields,
		Relationships: []map[string]interface{}{},
		RawShapeHint:  contract.ShapeEmbeddedSchema,
	}, true
}

// parseJSONSchema handles JSON Schema style documents. Requiredness
// comes from the separate required array, not the property maps.
func parseJSONSchema(doc map[string]interface{}, data []byte, relPath string) (contract.EntitySpec, bool) {
	if stringAt(doc, "type") != "object" {
		return contract.EntitySpec{}, false
	}
	props, ok := doc["properties"].(map[string]interface{})
	if !ok {
		return contract.EntitySpec{}, false
	}
	required := map[string]bool{}
	if list, ok := doc["required"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				required[s] = true
			}
		}
	}
	fields := make([]contract.FieldSpec, 0, len(props))
	for _, k := range orderedKeys(data, "properties") {
		def, ok := props[k].(map[string]interface{})
		if !ok {
			continue
		}
		fields = append(fields, contract.FieldSpec{
			Name:     k,
			Type:     contract.NormalizeFieldType(stringAt(def, "type")),
			Required: required[k],
			Nullable: boolAt(def, "nullable", false),
			Raw:      def,
		})
	}
	name := stringAt(doc, "title")
	if name == "" {
		name = stem(relPath)
	}
	return contract.EntitySpec{
		Name:          name,
		SourcePath:    relPath,
		Fields:        fields,
		Relationships: []map[string]interface{}{},
		RawShapeHint:  contract.ShapeJSONSchema,
	}, true
}

// orderedKeys lists an object's keys in document order. Decoding into a
// Go map discards ordering, and downstream artifacts should present
// fields the way the source declared them.
func orderedKeys(data []byte, keyPath ...string) []string {
	var keys []string
	_ = jsonparser.ObjectEach(data, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		keys = append(keys, string(key))
		return nil
	}, keyPath...)
	return keys
}

func relationshipList(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return []map[string]interface{}{}
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringAt(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolAt(m map[string]interface{}, key string, fallback bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return fallback
}

func stem(relPath string) string {
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}
