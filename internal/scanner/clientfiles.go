package scanner

// apiClientCandidates are the conventional API wrapper file locations.
var apiClientCandidates = []string{
	"src/lib/api.ts",
	"src/lib/api.js",
	"src/services/api.ts",
	"src/services/api.js",
	"src/api/index.ts",
	"src/api/index.js",
	"src/api/client.ts",
	"src/api/client.js",
}

// detectAPIClientFiles returns the union of the fixed candidate list and
// everything under src/api, forward-slash relative, without duplicates.
func (s *Scanner) detectAPIClientFiles() []string {
	found := []string{}
	seen := make(map[string]struct{})
	add := func(rel string) {
		if _, dup := seen[rel]; dup {
			return
		}
		seen[rel] = struct{}{}
		found = append(found, rel)
	}

	for _, rel := range apiClientCandidates {
		if s.walker.Exists(rel) {
			add(rel)
		}
	}
	if s.walker.IsDir("src/api") {
		for _, rel := range s.walker.FilesUnder("src/api", ".ts") {
			add(rel)
		}
		for _, rel := range s.walker.FilesUnder("src/api", ".js") {
			add(rel)
		}
	}
	return found
}
