package generator

import (
	"regexp"
	"strings"
)

var (
	snakeWordRe  = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	snakeLowerRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// toSnakeCase converts PascalCase or camelCase to snake_case.
// UserLink becomes user_link, APIToken becomes api_token.
func toSnakeCase(name string) string {
	s := snakeWordRe.ReplaceAllString(name, "${1}_${2}")
	s = snakeLowerRe.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

// toPluralSnakeCase converts an entity name to the plural snake_case
// form used for document collection names. Pluralization is naive on
// purpose: sibilant endings take "es", consonant+y becomes "ies",
// everything else takes "s".
func toPluralSnakeCase(name string) string {
	singular := toSnakeCase(name)
	switch {
	case strings.HasSuffix(singular, "s"),
		strings.HasSuffix(singular, "x"),
		strings.HasSuffix(singular, "z"),
		strings.HasSuffix(singular, "ch"),
		strings.HasSuffix(singular, "sh"):
		return singular + "es"
	case strings.HasSuffix(singular, "y") && len(singular) > 1 && !isVowel(singular[len(singular)-2]):
		return singular[:len(singular)-1] + "ies"
	default:
		return singular + "s"
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
