// Package classifier decides relational versus document placement for
// every entity in a UI contract. Classification is a pure function:
// identical inputs always produce an identical storage plan, and every
// decision carries a human-readable reason.
package classifier

import (
	"fmt"
	"strings"

	"github.com/fairlie/keel/internal/apperr"
	"github.com/fairlie/keel/internal/contract"
)

// Strategies selecting the hybrid-mode rule set.
const (
	StrategyDocToMongo         = "docToMongo"
	StrategyPostgresJSONBFirst = "postgresJsonbFirst"
)

// fieldCeiling is the declared-field count above which an entity is
// routed to the document store regardless of field shapes.
const fieldCeiling = 25

// relationalSuffixes mark entity names that conventionally denote
// join/link tables.
var relationalSuffixes = []string{"Link", "Join", "Map", "Follow", "Interaction"}

// Options select the mode, strategy, and explicit per-entity overrides
// for one classification run.
type Options struct {
	Mode             string
	Strategy         string
	MongoEntities    []string
	PostgresEntities []string
}

// NormalizeStrategy maps a strategy name onto one of the two supported
// rule sets. Unknown names and the legacy alias "auto" fall back to
// docToMongo rather than failing; existing callers depend on that.
func NormalizeStrategy(s string) string {
	if s == StrategyPostgresJSONBFirst {
		return StrategyPostgresJSONBFirst
	}
	return StrategyDocToMongo
}

// Classify routes each entity to postgres or mongo. Rule order per
// entity, first match wins:
//
//  1. explicit override (mongo set consulted before postgres set)
//  2. non-hybrid mode routes everything to that store
//  3. strategy rules over field shapes
//  4. field-count ceiling
//  5. join/link naming with only primitive fields
//  6. default postgres
//
// An entity without a name is a malformed contract and fails hard.
func Classify(entities []contract.EntitySpec, opts Options) (contract.StoragePlan, error) {
	mode := opts.Mode
	if mode == "" {
		mode = contract.ModeHybrid
	}
	strategy := NormalizeStrategy(opts.Strategy)
	mongoSet := nameSet(opts.MongoEntities)
	postgresSet := nameSet(opts.PostgresEntities)

	plan := contract.StoragePlan{
		Mode:     mode,
		Entities: make([]contract.PlanEntry, 0, len(entities)),
	}
	for _, e := range entities {
		if e.Name == "" {
			return contract.StoragePlan{}, fmt.Errorf("classify: entity from %q has no name: %w",
				e.SourcePath, apperr.ErrInvalidInput)
		}
		plan.Entities = append(plan.Entities, classifyEntity(e, mode, strategy, mongoSet, postgresSet))
	}
	return plan, nil
}

func classifyEntity(e contract.EntitySpec, mode, strategy string, mongoSet, postgresSet map[string]struct{}) contract.PlanEntry {
	if _, ok := mongoSet[e.Name]; ok {
		return entry(e, contract.StoreMongo, "explicit override to mongo store")
	}
	if _, ok := postgresSet[e.Name]; ok {
		return entry(e, contract.StorePostgres, "explicit override to postgres store")
	}

	if mode != contract.ModeHybrid {
		return entry(e, mode, "mode is "+mode)
	}

	for _, f := range e.Fields {
		var reason string
		var ok bool
		if strategy == StrategyPostgresJSONBFirst {
			reason, ok = jsonbFirstCondition(f)
		} else {
			reason, ok = docToMongoCondition(f)
		}
		if ok {
			return entry(e, contract.StoreMongo, reason)
		}
	}

	if n := len(e.Fields); n > fieldCeiling {
		return entry(e, contract.StoreMongo,
			fmt.Sprintf("%d fields exceeds the %d-field ceiling", n, fieldCeiling))
	}
	if hasRelationalSuffix(e.Name) && allPrimitive(e.Fields) {
		return entry(e, contract.StorePostgres, "join/link naming with only primitive fields")
	}
	return entry(e, contract.StorePostgres, "only primitive fields or simple structures")
}

func entry(e contract.EntitySpec, store, reason string) contract.PlanEntry {
	return contract.PlanEntry{Name: e.Name, Store: store, Reason: reason}
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func hasRelationalSuffix(name string) bool {
	for _, suffix := range relationalSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func allPrimitive(fields []contract.FieldSpec) bool {
	for _, f := range fields {
		if f.Type == contract.TypeArray || f.Type == contract.TypeObject {
			return false
		}
	}
	return true
}
