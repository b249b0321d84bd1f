package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairlie/keel/internal/contract"
)

// envVarPatterns match the two conventional "public" build-time variable
// prefixes. The full prefixed name is the variable identity.
var envVarPatterns = []*regexp.Regexp{
	regexp.MustCompile(`NEXT_PUBLIC_\w+`),
	regexp.MustCompile(`VITE_\w+`),
}

// detectEnvVars scans every source file for the public env-var prefixes,
// grouping occurrences by variable name in discovery order. Every
// occurrence is recorded as a single-line "path:line-line" range.
func (s *Scanner) detectEnvVars() []contract.EnvVarUsage {
	byName := make(map[string]*contract.EnvVarUsage)
	var order []string

	for _, rel := range s.walker.SourceFiles() {
		data, ok := s.walker.ReadCapped(rel)
		if !ok {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			for _, re := range envVarPatterns {
				for _, name := range re.FindAllString(line, -1) {
					usage, ok := byName[name]
					if !ok {
						usage = &contract.EnvVarUsage{Name: name, SourceLocations: []string{}}
						byName[name] = usage
						order = append(order, name)
					}
					usage.SourceLocations = append(usage.SourceLocations,
						fmt.Sprintf("%s:%d-%d", rel, i+1, i+1))
				}
			}
		}
	}

	out := make([]contract.EnvVarUsage, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}
