package contract

// Storage modes a plan can be computed under.
const (
	ModePostgres = "postgres"
	ModeMongo    = "mongo"
	ModeHybrid   = "hybrid"
)

// Stores an entity can be routed to.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// PlanEntry routes one entity to a store. Reason is always set; a plan
// entry without one is a bug.
type PlanEntry struct {
	Name   string `json:"name"`
	Store  string `json:"store"`
	Reason string `json:"reason"`
}

// StoragePlan is the classifier's output artifact (storage-plan.json).
type StoragePlan struct {
	Mode     string      `json:"mode"`
	Entities []PlanEntry `json:"entities"`
}

// CountByStore returns how many entities the plan routes to the given
// store.
func (p StoragePlan) CountByStore(store string) int {
	n := 0
	for _, e := range p.Entities {
		if e.Store == store {
			n++
		}
	}
	return n
}
