package classifier

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/contract"
)

func field(name, typ string, raw map[string]interface{}) contract.FieldSpec {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return contract.FieldSpec{Name: name, Type: typ, Required: true, Raw: raw}
}

func entityOf(name string, fields ...contract.FieldSpec) contract.EntitySpec {
	return contract.EntitySpec{
		Name:          name,
		SourcePath:    "src/entities/" + strings.ToLower(name) + ".json",
		Fields:        fields,
		Relationships: []map[string]interface{}{},
		RawShapeHint:  contract.ShapeFieldsArray,
	}
}

func classifyOne(t *testing.T, e contract.EntitySpec, opts Options) contract.PlanEntry {
	t.Helper()
	plan, err := Classify([]contract.EntitySpec{e}, opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(plan.Entities) != 1 {
		t.Fatalf("expected 1 plan entry, got %d", len(plan.Entities))
	}
	return plan.Entities[0]
}

func TestClassifyDefaultPostgres(t *testing.T) {
	e := entityOf("User",
		field("id", contract.TypeString, nil),
		field("email", contract.TypeString, nil),
		field("age", contract.TypeInteger, nil),
	)
	got := classifyOne(t, e, Options{Mode: contract.ModeHybrid})
	if got.Store != contract.StorePostgres {
		t.Fatalf("store = %q, want postgres", got.Store)
	}
	if !strings.Contains(got.Reason, "primitive") {
		t.Errorf("reason %q should mention primitive fields", got.Reason)
	}
}

func TestClassifyDocToMongoConditions(t *testing.T) {
	tests := []struct {
		name       string
		f          contract.FieldSpec
		wantStore  string
		wantInside []string
	}{
		{
			name: "object with nested properties",
			f: field("profile", contract.TypeObject, map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"bio": map[string]interface{}{"type": "string"}},
			}),
			wantStore:  contract.StoreMongo,
			wantInside: []string{"profile", "object"},
		},
		{
			name: "open map via additionalProperties",
			f: field("settings", contract.TypeObject, map[string]interface{}{
				"type":                 "object",
				"additionalProperties": map[string]interface{}{"type": "string"},
			}),
			wantStore:  contract.StoreMongo,
			wantInside: []string{"additional", "map"},
		},
		{
			name: "array of objects by items type",
			f: field("steps", contract.TypeArray, map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			}),
			wantStore:  contract.StoreMongo,
			wantInside: []string{"array of objects"},
		},
		{
			name: "array of objects by items properties",
			f: field("steps", contract.TypeArray, map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
				},
			}),
			wantStore:  contract.StoreMongo,
			wantInside: []string{"array of objects"},
		},
		{
			name:      "array of primitives stays relational",
			f:         field("tags", contract.TypeArray, map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}),
			wantStore: contract.StorePostgres,
		},
		{
			name: "empty additionalProperties object does not count",
			f: field("extra", contract.TypeObject, map[string]interface{}{
				"type":                 "object",
				"additionalProperties": map[string]interface{}{},
			}),
			wantStore: contract.StorePostgres,
		},
		{
			name:      "additionalProperties false does not count",
			f:         field("extra", contract.TypeObject, map[string]interface{}{"type": "object", "additionalProperties": false}),
			wantStore: contract.StorePostgres,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entityOf("Recipe", field("id", contract.TypeString, nil), tt.f)
			got := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyDocToMongo})
			if got.Store != tt.wantStore {
				t.Fatalf("store = %q, want %q (reason %q)", got.Store, tt.wantStore, got.Reason)
			}
			for _, part := range tt.wantInside {
				if !strings.Contains(strings.ToLower(got.Reason), part) {
					t.Errorf("reason %q should contain %q", got.Reason, part)
				}
			}
		})
	}
}

func TestClassifyStrategiesDiverge(t *testing.T) {
	// A flat object with one level of properties: structured enough for
	// docToMongo, shallow enough to stay relational under jsonb-first.
	e := entityOf("Profile",
		field("id", contract.TypeString, nil),
		field("address", contract.TypeObject, map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"street": map[string]interface{}{"type": "string"},
				"city":   map[string]interface{}{"type": "string"},
			},
		}),
	)

	doc := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyDocToMongo})
	if doc.Store != contract.StoreMongo {
		t.Errorf("docToMongo: store = %q, want mongo (reason %q)", doc.Store, doc.Reason)
	}

	jsonb := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyPostgresJSONBFirst})
	if jsonb.Store != contract.StorePostgres {
		t.Errorf("postgresJsonbFirst: store = %q, want postgres (reason %q)", jsonb.Store, jsonb.Reason)
	}
}

func TestClassifyOpenMapDivergence(t *testing.T) {
	// A bare additionalProperties: true with no nested properties is the
	// sharpest divergence between the two strategies: docToMongo treats
	// any open map as document-shaped, jsonb-first keeps it relational
	// as an opaque JSONB column.
	e := entityOf("Settings",
		field("id", contract.TypeString, nil),
		field("values", contract.TypeObject, map[string]interface{}{
			"type":                 "object",
			"additionalProperties": true,
		}),
	)

	doc := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyDocToMongo})
	if doc.Store != contract.StoreMongo {
		t.Errorf("docToMongo: store = %q, want mongo (reason %q)", doc.Store, doc.Reason)
	}

	jsonb := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyPostgresJSONBFirst})
	if jsonb.Store != contract.StorePostgres {
		t.Errorf("postgresJsonbFirst: store = %q, want postgres (reason %q)", jsonb.Store, jsonb.Reason)
	}
}

func TestClassifyJSONBFirstDeepNesting(t *testing.T) {
	e := entityOf("Catalog",
		field("id", contract.TypeString, nil),
		field("sections", contract.TypeObject, map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"intro": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title": map[string]interface{}{"type": "string"},
					},
				},
			},
		}),
	)
	got := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyPostgresJSONBFirst})
	if got.Store != contract.StoreMongo {
		t.Fatalf("store = %q, want mongo (reason %q)", got.Store, got.Reason)
	}
	if !strings.Contains(got.Reason, "deeply nested") {
		t.Errorf("reason %q should mention deep nesting", got.Reason)
	}
}

func TestClassifyJSONBFirstArrayOfObjects(t *testing.T) {
	e := entityOf("Recipe",
		field("steps", contract.TypeArray, map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		}),
	)
	got := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: StrategyPostgresJSONBFirst})
	if got.Store != contract.StoreMongo {
		t.Fatalf("store = %q, want mongo", got.Store)
	}
	if !strings.Contains(got.Reason, "array of objects") {
		t.Errorf("reason %q should mention array of objects", got.Reason)
	}
}

func TestClassifyOverridePrecedence(t *testing.T) {
	e := entityOf("AuditLog", field("id", contract.TypeString, nil))

	opts := Options{
		Mode:             contract.ModePostgres,
		MongoEntities:    []string{"AuditLog"},
		PostgresEntities: []string{"AuditLog"},
	}
	got := classifyOne(t, e, opts)
	if got.Store != contract.StoreMongo {
		t.Fatalf("store = %q, want mongo: the mongo override set wins ties", got.Store)
	}
	if !strings.Contains(got.Reason, "explicit override") {
		t.Errorf("reason %q should mention the explicit override", got.Reason)
	}

	got = classifyOne(t, e, Options{Mode: contract.ModeMongo, PostgresEntities: []string{"AuditLog"}})
	if got.Store != contract.StorePostgres {
		t.Fatalf("store = %q, want postgres: overrides beat the mode", got.Store)
	}
}

func TestClassifySingleStoreModes(t *testing.T) {
	deep := entityOf("Doc",
		field("body", contract.TypeObject, map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"x": map[string]interface{}{"type": "string"}},
		}),
	)

	got := classifyOne(t, deep, Options{Mode: contract.ModePostgres})
	if got.Store != contract.StorePostgres || got.Reason != "mode is postgres" {
		t.Errorf("postgres mode: got %q / %q", got.Store, got.Reason)
	}

	flat := entityOf("User", field("id", contract.TypeString, nil))
	got = classifyOne(t, flat, Options{Mode: contract.ModeMongo})
	if got.Store != contract.StoreMongo || got.Reason != "mode is mongo" {
		t.Errorf("mongo mode: got %q / %q", got.Store, got.Reason)
	}
}

func TestClassifyFieldCeiling(t *testing.T) {
	wide := func(n int) contract.EntitySpec {
		fields := make([]contract.FieldSpec, 0, n)
		for i := 0; i < n; i++ {
			fields = append(fields, field(fmt.Sprintf("field%02d", i), contract.TypeString, nil))
		}
		return entityOf("Snapshot", fields...)
	}

	at := classifyOne(t, wide(25), Options{Mode: contract.ModeHybrid})
	if at.Store != contract.StorePostgres {
		t.Errorf("25 fields: store = %q, want postgres (reason %q)", at.Store, at.Reason)
	}

	over := classifyOne(t, wide(26), Options{Mode: contract.ModeHybrid})
	if over.Store != contract.StoreMongo {
		t.Fatalf("26 fields: store = %q, want mongo", over.Store)
	}
	if !strings.Contains(over.Reason, "26") || !strings.Contains(over.Reason, "25") {
		t.Errorf("reason %q should cite both the count and the ceiling", over.Reason)
	}
}

func TestClassifyRelationalSuffix(t *testing.T) {
	link := entityOf("UserLink",
		field("userId", contract.TypeString, nil),
		field("targetId", contract.TypeString, nil),
	)
	got := classifyOne(t, link, Options{Mode: contract.ModeHybrid})
	if got.Store != contract.StorePostgres {
		t.Fatalf("store = %q, want postgres", got.Store)
	}
	if !strings.Contains(got.Reason, "primitive") {
		t.Errorf("reason %q should mention primitive fields", got.Reason)
	}

	// A structured field disqualifies the suffix shortcut; the entity
	// still lands in mongo through the strategy rules instead.
	deepLink := entityOf("UserFollow",
		field("meta", contract.TypeObject, map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"since": map[string]interface{}{"type": "string"}},
		}),
	)
	got = classifyOne(t, deepLink, Options{Mode: contract.ModeHybrid})
	if got.Store != contract.StoreMongo {
		t.Errorf("structured follow entity: store = %q, want mongo (reason %q)", got.Store, got.Reason)
	}
}

func TestClassifyUnknownStrategyFallsBack(t *testing.T) {
	e := entityOf("Recipe",
		field("steps", contract.TypeArray, map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "object"},
		}),
	)
	for _, s := range []string{"auto", "", "documentEverything"} {
		got := classifyOne(t, e, Options{Mode: contract.ModeHybrid, Strategy: s})
		if got.Store != contract.StoreMongo {
			t.Errorf("strategy %q: store = %q, want mongo via docToMongo fallback", s, got.Store)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	entities := []contract.EntitySpec{
		entityOf("Recipe",
			field("title", contract.TypeString, nil),
			field("steps", contract.TypeArray, map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			}),
		),
		entityOf("Ingredient",
			field("id", contract.TypeString, nil),
			field("name", contract.TypeString, nil),
			field("quantity", contract.TypeNumber, nil),
		),
	}
	opts := Options{Mode: contract.ModeHybrid, Strategy: StrategyDocToMongo}

	first, err := Classify(entities, opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, err := Classify(entities, opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different plans:\n%+v\n%+v", first, second)
	}

	if first.Entities[0].Store != contract.StoreMongo {
		t.Errorf("Recipe: store = %q, want mongo", first.Entities[0].Store)
	}
	if first.Entities[1].Store != contract.StorePostgres {
		t.Errorf("Ingredient: store = %q, want postgres", first.Entities[1].Store)
	}
	for _, pe := range first.Entities {
		if pe.Reason == "" {
			t.Errorf("entity %q has an empty reason", pe.Name)
		}
	}
}

func TestClassifyRejectsUnnamedEntity(t *testing.T) {
	_, err := Classify([]contract.EntitySpec{{SourcePath: "src/entities/blank.json"}}, Options{Mode: contract.ModeHybrid})
	if err == nil {
		t.Fatal("expected an error for an entity without a name")
	}
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("error %v should wrap ErrInvalidInput", err)
	}
}

func TestSchemaDepth(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]interface{}
		want   int
	}{
		{"no properties", map[string]interface{}{"type": "object"}, 0},
		{"empty properties", map[string]interface{}{"properties": map[string]interface{}{}}, 0},
		{
			"flat",
			map[string]interface{}{"properties": map[string]interface{}{
				"a": map[string]interface{}{"type": "string"},
			}},
			1,
		},
		{
			"nested object",
			map[string]interface{}{"properties": map[string]interface{}{
				"a": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"b": map[string]interface{}{"type": "string"},
					},
				},
			}},
			2,
		},
		{
			"array of primitives adds nothing",
			map[string]interface{}{"properties": map[string]interface{}{
				"tags": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			}},
			1,
		},
		{
			"array of objects contributes its items depth",
			map[string]interface{}{"properties": map[string]interface{}{
				"steps": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text": map[string]interface{}{"type": "string"},
						},
					},
				},
			}},
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schemaDepth(tt.schema); got != tt.want {
				t.Errorf("schemaDepth = %d, want %d", got, tt.want)
			}
		})
	}
}
