// Package generator renders storage schema artifacts from a UI
// contract and its storage plan: relational DDL for postgres
// entities, JSON schemas and a collection guide for mongo entities,
// and a markdown overview covering the whole plan.
package generator

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fairlie/keel/internal/contract"
)

// Artifact file names, relative to a job's artifacts directory.
const (
	ArtifactSQLSchema        = "db-schema.sql"
	ArtifactMongoSchemas     = "mongo-schemas.json"
	ArtifactMongoCollections = "mongo-collections.md"
	ArtifactOverview         = "db-schema.md"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name string
	Data []byte
}

// Generate renders the schema artifacts for a classified contract.
// Store-specific artifacts are emitted only when the plan routes at
// least one entity to that store; the overview is always emitted.
// An entity missing from the plan defaults to postgres.
func Generate(entities []contract.EntitySpec, plan contract.StoragePlan) ([]Artifact, error) {
	stores := make(map[string]string, len(plan.Entities))
	for _, pe := range plan.Entities {
		stores[pe.Name] = pe.Store
	}

	var pg, mongo []contract.EntitySpec
	for _, e := range entities {
		if stores[e.Name] == contract.StoreMongo {
			mongo = append(mongo, e)
			continue
		}
		pg = append(pg, e)
	}

	artifacts := make([]Artifact, 0, 4)
	if len(pg) > 0 {
		artifacts = append(artifacts, Artifact{ArtifactSQLSchema, renderSQL(pg)})
	}
	if len(mongo) > 0 {
		schemas, err := renderMongoSchemas(mongo)
		if err != nil {
			return nil, fmt.Errorf("generator: render mongo schemas: %w", err)
		}
		artifacts = append(artifacts,
			Artifact{ArtifactMongoSchemas, schemas},
			Artifact{ArtifactMongoCollections, renderMongoCollections(mongo)},
		)
	}
	artifacts = append(artifacts, Artifact{ArtifactOverview, renderOverview(plan, pg, mongo)})
	return artifacts, nil
}

func marshalIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
