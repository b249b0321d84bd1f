// Package contract defines the artifact types Keel produces: the UI
// contract emitted by the source scanner and the storage plan emitted
// by the classifier. JSON field names are part of the artifact format
// and must not change.
package contract

import "strings"

// Shape hints recorded on entities, naming the convention the source
// document matched.
const (
	ShapeFieldsArray    = "fields-array"
	ShapeKeyMap         = "key-map"
	ShapeEmbeddedSchema = "embedded-schema"
	ShapeJSONSchema     = "json-schema"
	ShapeUnknown        = "unknown"
)

// FieldSpec describes a single entity field. Type is always one of the
// closed set accepted by NormalizeFieldType; Raw keeps the source
// fragment verbatim for downstream schema decisions.
type FieldSpec struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Required bool           `json:"required"`
	Nullable bool           `json:"nullable"`
	Raw      map[string]any `json:"raw"`
}

// EntitySpec is one entity recovered from a source JSON document.
type EntitySpec struct {
	Name          string           `json:"name"`
	SourcePath    string           `json:"sourcePath"`
	Fields        []FieldSpec      `json:"fields"`
	Relationships []map[string]any `json:"relationships"`
	RawShapeHint  string           `json:"rawShapeHint"`
}

// FrameworkInfo identifies the detected frontend framework.
// Name is one of "nextjs", "vite", "cra", or "unknown".
type FrameworkInfo struct {
	Name        string `json:"name"`
	VersionHint string `json:"versionHint"`
}

// EnvVarUsage groups every occurrence of one build-time variable.
// Locations are "path:line-line" strings.
type EnvVarUsage struct {
	Name            string   `json:"name"`
	SourceLocations []string `json:"sourceLocations"`
}

// EndpointUsage is one HTTP call site found in the source.
type EndpointUsage struct {
	Method            string   `json:"method"`
	PathHint          string   `json:"pathHint"`
	Dynamic           bool     `json:"dynamic"`
	SourceLocations   []string `json:"sourceLocations"`
	RequestBodyHint   *string  `json:"requestBodyHint"`
	ResponseShapeHint *string  `json:"responseShapeHint"`
}

// ParseFailure records a per-file error that was tolerated during
// entity discovery.
type ParseFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// EntityDetection summarizes how entity discovery went.
type EntityDetection struct {
	DirectoriesFound []string       `json:"directoriesFound"`
	FilesParsed      int            `json:"filesParsed"`
	FilesFailed      []ParseFailure `json:"filesFailed"`
}

// UIContract is the scanner's output artifact (ui-contract.json).
type UIContract struct {
	SourceRepoURL   string          `json:"source_repo_url"`
	Framework       FrameworkInfo   `json:"framework"`
	EnvVars         []EnvVarUsage   `json:"envVars"`
	APIClientFiles  []string        `json:"apiClientFiles"`
	Entities        []EntitySpec    `json:"entities"`
	EntityDetection EntityDetection `json:"entityDetection"`
	EndpointsUsed   []EndpointUsage `json:"endpointsUsed"`
	Notes           []string        `json:"notes"`
}

// Field types FieldSpec.Type may carry.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeInteger  = "integer"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeDate     = "date"
	TypeArray    = "array"
	TypeObject   = "object"
)

var fieldTypeAliases = map[string]string{
	"string":    TypeString,
	"number":    TypeNumber,
	"integer":   TypeInteger,
	"boolean":   TypeBoolean,
	"datetime":  TypeDatetime,
	"date":      TypeDate,
	"array":     TypeArray,
	"object":    TypeObject,
	"bool":      TypeBoolean,
	"int":       TypeInteger,
	"float":     TypeNumber,
	"double":    TypeNumber,
	"date-time": TypeDatetime,
	"timestamp": TypeDatetime,
}

// NormalizeFieldType maps a raw type string onto the closed field type
// set. Unrecognized input degrades to "string".
func NormalizeFieldType(raw string) string {
	if t, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return TypeString
}
