package mcpserver

// UIContractFormat describes the canonical UI contract document that
// scan_source produces and downstream planners consume.
const UIContractFormat = `# Keel UI Contract Format

Every scan of a frontend source tree produces one JSON document with
this structure. The same document is written as the ui-contract.json
artifact of a job.

## Structure

` + "```" + `json
{
  "source_repo_url": "https://github.com/acme/shop-ui",
  "framework": {"name": "nextjs", "versionHint": "14.2.3"},
  "envVars": [
    {"name": "NEXT_PUBLIC_API_URL", "sourceLocations": ["src/lib/api.ts:3-3"]}
  ],
  "apiClientFiles": ["src/lib/api.ts"],
  "entities": [
    {
      "name": "Recipe",
      "sourcePath": "src/entities/recipe.json",
      "fields": [
        {"name": "id", "type": "string", "required": true, "nullable": false, "raw": {}}
      ],
      "relationships": [],
      "rawShapeHint": "fields-array"
    }
  ],
  "entityDetection": {
    "directoriesFound": ["src/entities"],
    "filesParsed": 1,
    "filesFailed": []
  },
  "endpointsUsed": [
    {
      "method": "GET",
      "pathHint": "/api/recipes",
      "dynamic": false,
      "sourceLocations": ["src/lib/api.ts:7-7"],
      "requestBodyHint": null,
      "responseShapeHint": null
    }
  ],
  "notes": ["discovered 1 entities across 1 parsed files"]
}
` + "```" + `

## Rules

1. **` + "`" + `framework.name` + "`" + ` is one of** ` + "`" + `nextjs` + "`" + `, ` + "`" + `vite` + "`" + `, ` + "`" + `cra` + "`" + `, or ` + "`" + `unknown` + "`" + `.
   Detection requires a readable package.json manifest; config files alone
   never identify a framework.
2. **Field ` + "`" + `type` + "`" + ` is one of** ` + "`" + `string` + "`" + `, ` + "`" + `number` + "`" + `, ` + "`" + `integer` + "`" + `, ` + "`" + `boolean` + "`" + `,
   ` + "`" + `datetime` + "`" + `, ` + "`" + `date` + "`" + `, ` + "`" + `array` + "`" + `, ` + "`" + `object` + "`" + `. Unrecognized source types
   degrade to ` + "`" + `string` + "`" + `.
3. **` + "`" + `raw` + "`" + ` is opaque.** It preserves the source schema fragment (enum,
   items, properties, bounds) verbatim for downstream consumers; the
   scanner never interprets it.
4. **` + "`" + `rawShapeHint` + "`" + ` names the recognized document shape:** ` + "`" + `fields-array` + "`" + `,
   ` + "`" + `key-map` + "`" + `, ` + "`" + `embedded-schema` + "`" + `, or ` + "`" + `json-schema` + "`" + `.
5. **Entity documents are discovered under conventional directories**
   (src/Entities, src/entities, src/models, src/model, app/Entities,
   app/entities). Files that fail to parse appear in
   ` + "`" + `entityDetection.filesFailed` + "`" + ` with an error string.
6. **Env vars** cover ` + "`" + `NEXT_PUBLIC_*` + "`" + ` and ` + "`" + `VITE_*` + "`" + ` usages, grouped by
   name with ` + "`" + `path:line-line` + "`" + ` source locations.
7. **Endpoint ` + "`" + `pathHint` + "`" + `** is a best-effort literal. Template or
   concatenated URLs set ` + "`" + `dynamic` + "`" + ` to true and truncate the hint to 50
   characters plus ` + "`" + `...` + "`" + `; fully opaque call sites use the literal hint
   ` + "`" + `dynamic` + "`" + `.
8. **Paths are repo-relative with forward slashes** regardless of the
   scanning platform.
9. **` + "`" + `notes` + "`" + ` is human-readable.** Consumers must not parse it; use the
   structured fields instead.
`
