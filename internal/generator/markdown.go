package generator

import (
	"fmt"
	"strings"

	"github.com/fairlie/keel/internal/contract"
)

// renderOverview builds db-schema.md, the human-readable summary that
// is written for every plan regardless of which stores it uses.
func renderOverview(plan contract.StoragePlan, pg, mongo []contract.EntitySpec) []byte {
	var b strings.Builder
	b.WriteString("# Storage Plan\n\n")
	fmt.Fprintf(&b, "Mode: `%s`\n\n", plan.Mode)

	if len(plan.Entities) == 0 {
		b.WriteString("No entities were classified.\n")
		return []byte(b.String())
	}

	b.WriteString("| Entity | Store | Reason |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, pe := range plan.Entities {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", pe.Name, pe.Store, sanitizeCell(pe.Reason))
	}

	if len(pg) > 0 {
		b.WriteString("\n## Relational tables\n\n")
		for _, e := range pg {
			fmt.Fprintf(&b, "- `%s` (%s)\n", toSnakeCase(e.Name), e.Name)
		}
	}
	if len(mongo) > 0 {
		b.WriteString("\n## Document collections\n\n")
		for _, e := range mongo {
			fmt.Fprintf(&b, "- `%s` (%s)\n", toPluralSnakeCase(e.Name), e.Name)
		}
	}
	return []byte(b.String())
}

func sanitizeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
