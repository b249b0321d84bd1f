package scanner

import (
	"encoding/json"
	"log/slog"

	"github.com/fairlie/keel/internal/contract"
)

var (
	nextConfigFiles = []string{"next.config.js", "next.config.ts", "next.config.mjs"}
	viteConfigFiles = []string{"vite.config.js", "vite.config.ts", "vite.config.mjs"}
)

// detectFramework inspects package.json and conventional config files.
// Priority: manifest dependency, then config file, then directory
// convention. A missing or malformed manifest yields unknown.
func (s *Scanner) detectFramework() contract.FrameworkInfo {
	unknown := contract.FrameworkInfo{Name: "unknown", VersionHint: ""}

	if !s.walker.Exists("package.json") {
		return unknown
	}
	data, ok := s.walker.ReadCapped("package.json")
	if !ok {
		return unknown
	}
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		s.logger.Warn("scanner: malformed package.json", slog.String("error", err.Error()))
		return unknown
	}
	deps := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for k, v := range manifest.Dependencies {
		deps[k] = v
	}
	for k, v := range manifest.DevDependencies {
		deps[k] = v
	}

	if v, ok := deps["next"]; ok {
		return contract.FrameworkInfo{Name: "nextjs", VersionHint: v}
	}
	for _, f := range nextConfigFiles {
		if s.walker.Exists(f) {
			return contract.FrameworkInfo{Name: "nextjs"}
		}
	}
	if s.walker.IsDir("app") || s.walker.IsDir("pages") {
		return contract.FrameworkInfo{Name: "nextjs"}
	}

	if v, ok := deps["vite"]; ok {
		return contract.FrameworkInfo{Name: "vite", VersionHint: v}
	}
	for _, f := range viteConfigFiles {
		if s.walker.Exists(f) {
			return contract.FrameworkInfo{Name: "vite"}
		}
	}

	if v, ok := deps["react-scripts"]; ok {
		return contract.FrameworkInfo{Name: "cra", VersionHint: v}
	}
	return unknown
}
