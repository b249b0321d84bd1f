package scanner

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/fairlie/keel/internal/contract"
)

// endpointExts is narrower than the env-var extension set: endpoint
// calls are looked for in plain TS/JS and JSX files only.
var endpointExts = map[string]struct{}{
	".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {},
}

var (
	fetchCallRe   = regexp.MustCompile(`(?s)fetch\s*\([^)]+\)`)
	fetchURLRe    = regexp.MustCompile("(?s)fetch\\s*\\(\\s*(?:\"(.*?)\"|'(.*?)'|`(.*?)`)")
	fetchMethodRe = regexp.MustCompile(`(?i)fetch\s*\([^,)]+,\s*\{[^}]*method\s*:\s*["'](\w+)["']`)

	axiosMethodCallRe = regexp.MustCompile(`(?s)axios\.(get|post|put|patch|delete)\s*\([^)]+\)`)
	axiosTemplateRe   = regexp.MustCompile("(?s)axios\\.\\w+\\s*\\(\\s*`([^`]+)`")
	axiosQuotedRe     = regexp.MustCompile(`axios\.\w+\s*\(\s*(?:"([^"']+)"|'([^"']+)')`)
	axiosSlashRe      = regexp.MustCompile(`axios\.\w+\s*\(\s*(/[^\s,)]+)`)

	axiosConfigRe    = regexp.MustCompile(`axios\s*\(\s*\{`)
	configTemplateRe = regexp.MustCompile("(?is)url\\s*:\\s*`([^`]+)`")
	configQuotedRe   = regexp.MustCompile(`(?i)url\s*:\s*(?:"([^"']+)"|'([^"']+)')`)
	configSlashRe    = regexp.MustCompile(`(?i)url\s*:\s*(/[^\s,}]+)`)

	methodKeyRe = regexp.MustCompile(`(?i)method\s*:\s*["'](\w+)["']`)
	bodyHintRe  = regexp.MustCompile(`(?is)(?:body|data)\s*:\s*\{[^}]+`)
	pathTokenRe = regexp.MustCompile(`[/\w-]+`)
)

// scanEndpoints locates fetch and axios call sites across the tree.
// Results keep file walk order; within a file, fetch calls come first,
// then axios verb calls, then axios config-object calls.
func (s *Scanner) scanEndpoints() []contract.EndpointUsage {
	endpoints := []contract.EndpointUsage{}
	for _, rel := range s.walker.SourceFiles() {
		if _, ok := endpointExts[strings.ToLower(path.Ext(rel))]; !ok {
			continue
		}
		data, ok := s.walker.ReadCapped(rel)
		if !ok {
			continue
		}
		content := string(data)

		for _, loc := range fetchCallRe.FindAllStringIndex(content, -1) {
			endpoints = append(endpoints,
				parseFetchCall(content[loc[0]:loc[1]], lineRange(content, rel, loc[0], loc[1])))
		}
		for _, idx := range axiosMethodCallRe.FindAllStringSubmatchIndex(content, -1) {
			method := strings.ToUpper(content[idx[2]:idx[3]])
			endpoints = append(endpoints,
				parseAxiosMethodCall(content[idx[0]:idx[1]], method, lineRange(content, rel, idx[0], idx[1])))
		}
		for _, loc := range axiosConfigRe.FindAllStringIndex(content, -1) {
			callText, end, ok := extractBalancedCall(content, loc[0])
			if !ok {
				continue
			}
			endpoints = append(endpoints,
				parseAxiosConfigCall(callText, lineRange(content, rel, loc[0], end)))
		}
	}
	return endpoints
}

// extractBalancedCall returns the call text from start (the beginning of
// an "axios({" match) through the closing parenthesis. Pattern matching
// alone cannot find that boundary: the config object may nest objects
// and contain string literals with unbalanced braces, so this tracks
// brace depth and string state explicitly. A quote toggles string state
// only when it is not backslash-escaped and matches the opening
// delimiter; braces and parens count only outside strings. Once depth
// returns to zero the closing paren must follow after whitespace.
func extractBalancedCall(content string, start int) (string, int, bool) {
	braceCount := 0
	parenCount := 0
	inString := false
	var stringChar byte

	for pos := start; pos < len(content); pos++ {
		c := content[pos]

		if (c == '"' || c == '\'' || c == '`') && (pos == 0 || content[pos-1] != '\\') {
			if !inString {
				inString = true
				stringChar = c
			} else if c == stringChar {
				inString = false
				stringChar = 0
			}
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				look := pos + 1
				for look < len(content) && (content[look] == ' ' || content[look] == '\n' || content[look] == '\t') {
					look++
				}
				if look < len(content) && content[look] == ')' {
					return content[start : look+1], look + 1, true
				}
				// Not the call boundary (extra arguments follow);
				// keep scanning for the next balanced close.
				pos = look
			}
		case '(':
			if braceCount == 0 {
				parenCount++
			}
		case ')':
			if braceCount == 0 {
				parenCount--
				if parenCount < 0 {
					return "", 0, false
				}
			}
		}
	}
	return "", 0, false
}

func parseFetchCall(callText, location string) contract.EndpointUsage {
	idx := fetchURLRe.FindStringSubmatchIndex(callText)
	if idx == nil {
		return contract.EndpointUsage{
			Method:          "GET",
			PathHint:        "dynamic",
			Dynamic:         true,
			SourceLocations: []string{location},
		}
	}
	url := ""
	for g := 1; g <= 3; g++ {
		if idx[2*g] >= 0 {
			url = callText[idx[2*g]:idx[2*g+1]]
			break
		}
	}
	matched := callText[idx[0]:idx[1]]
	dynamic := strings.Contains(url, "${") || strings.Contains(url, "+") || strings.Contains(matched, "`")

	method := "GET"
	if m := fetchMethodRe.FindStringSubmatch(callText); m != nil {
		method = strings.ToUpper(m[1])
	}
	return contract.EndpointUsage{
		Method:          method,
		PathHint:        pathHint(url, dynamic),
		Dynamic:         dynamic,
		SourceLocations: []string{location},
		RequestBodyHint: extractBodyHint(callText),
	}
}

func parseAxiosMethodCall(callText, method, location string) contract.EndpointUsage {
	if m := axiosTemplateRe.FindStringSubmatch(callText); m != nil {
		url := m[1]
		dynamic := strings.Contains(url, "${")
		// A template URL usually embeds variables; keep just the first
		// path-looking run when one exists.
		if strings.Contains(url, "/") {
			if tok := pathTokenRe.FindString(url); tok != "" {
				url = tok
			}
		}
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        pathHint(url, dynamic),
			Dynamic:         dynamic,
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	if m := axiosQuotedRe.FindStringSubmatch(callText); m != nil {
		url := m[1]
		if url == "" {
			url = m[2]
		}
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        url,
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	if m := axiosSlashRe.FindStringSubmatch(callText); m != nil {
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        m[1],
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	return contract.EndpointUsage{
		Method:          method,
		PathHint:        "dynamic",
		Dynamic:         true,
		SourceLocations: []string{location},
		RequestBodyHint: extractBodyHint(callText),
	}
}

func parseAxiosConfigCall(callText, location string) contract.EndpointUsage {
	method := "GET"
	if m := methodKeyRe.FindStringSubmatch(callText); m != nil {
		method = strings.ToUpper(m[1])
	}

	if m := configTemplateRe.FindStringSubmatch(callText); m != nil {
		url := m[1]
		dynamic := strings.Contains(url, "${")
		if strings.Contains(url, "/") && !dynamic {
			if tok := pathTokenRe.FindString(url); tok != "" {
				url = tok
			}
		}
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        pathHint(url, dynamic),
			Dynamic:         dynamic,
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	if m := configQuotedRe.FindStringSubmatch(callText); m != nil {
		url := m[1]
		if url == "" {
			url = m[2]
		}
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        url,
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	if m := configSlashRe.FindStringSubmatch(callText); m != nil {
		return contract.EndpointUsage{
			Method:          method,
			PathHint:        m[1],
			SourceLocations: []string{location},
			RequestBodyHint: extractBodyHint(callText),
		}
	}
	return contract.EndpointUsage{
		Method:          method,
		PathHint:        "dynamic",
		Dynamic:         true,
		SourceLocations: []string{location},
	}
}

// pathHint truncates dynamic hints: the exact path is not recoverable
// from a template and must not be fabricated.
func pathHint(url string, dynamic bool) string {
	if !dynamic {
		return url
	}
	runes := []rune(url)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	return string(runes) + "..."
}

func extractBodyHint(callText string) *string {
	m := bodyHintRe.FindString(callText)
	if m == "" {
		return nil
	}
	runes := []rune(m)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	hint := string(runes)
	return &hint
}

// lineRange renders a "path:start-end" location from byte offsets.
func lineRange(content, rel string, start, end int) string {
	startLine := strings.Count(content[:start], "\n") + 1
	endLine := strings.Count(content[:end], "\n") + 1
	return fmt.Sprintf("%s:%d-%d", rel, startLine, endLine)
}
