package scanner

import (
	"log/slog"
	"path/filepath"

	"github.com/fairlie/keel/internal/contract"
)

// entityDirPatterns is the fixed priority list of conventional entity
// directories. Matching is case-insensitive per path segment, so one
// pattern can resolve to several physical directories.
var entityDirPatterns = []string{
	"src/Entities",
	"src/entities",
	"src/models",
	"src/model",
	"app/Entities",
	"app/entities",
}

// discoverEntities parses every JSON document beneath the conventional
// entity directories. Files are de-duplicated by resolved absolute path,
// never by entity name: two files producing the same name both survive.
func (s *Scanner) discoverEntities() ([]contract.EntitySpec, contract.EntityDetection) {
	det := contract.EntityDetection{
		DirectoriesFound: []string{},
		FilesFailed:      []contract.ParseFailure{},
	}
	entities := []contract.EntitySpec{}
	seenFiles := make(map[string]struct{})

	for _, pattern := range entityDirPatterns {
		var candidates []string
		for _, dir := range s.walker.ResolveDirs(pattern) {
			candidates = append(candidates, s.walker.FilesUnder(dir, ".json")...)
		}
		if len(candidates) == 0 {
			continue
		}
		det.DirectoriesFound = append(det.DirectoriesFound, pattern)

		for _, rel := range candidates {
			abs := s.walker.Abs(rel)
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				abs = resolved
			}
			if _, dup := seenFiles[abs]; dup {
				continue
			}
			seenFiles[abs] = struct{}{}

			data, ok := s.walker.ReadCapped(rel)
			if !ok {
				det.FilesFailed = append(det.FilesFailed, contract.ParseFailure{
					Path:  rel,
					Error: "unreadable or oversized file",
				})
				continue
			}
			spec, err := ParseEntityBytes(data, rel)
			if err != nil {
				s.logger.Warn("scanner: entity file rejected",
					slog.String("path", rel), slog.String("error", err.Error()))
				det.FilesFailed = append(det.FilesFailed, contract.ParseFailure{
					Path:  rel,
					Error: err.Error(),
				})
				continue
			}
			entities = append(entities, spec)
			det.FilesParsed++
		}
	}
	return entities, det
}
