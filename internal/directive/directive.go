// Package directive extracts bot directives embedded in calendar event
// bodies. A directive block is delimited by two sentinel markers and holds
// one "key: value" pair per line:
//
//	[PLATFORM_BOT]
//	project: ABC
//	owner: me
//	[PLATFORM_BOT]
package directive

import (
	"regexp"
	"strings"

	"github.com/beekhof/exchange-sync/internal/domain"
)

const (
	// Sentinel delimits a directive block.
	Sentinel = "[PLATFORM_BOT]"
	// Separator splits a directive line into key and value.
	Separator = ": "
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blockPattern = regexp.MustCompile(`(?:` + regexp.QuoteMeta(Sentinel) + `)([\s\S]*)(?:` + regexp.QuoteMeta(Sentinel) + `)`)
	lineBreaks   = strings.NewReplacer("\r", " ", "\n", " ")
)

// HasBlock reports whether body contains the sentinel at least twice.
func HasBlock(body string) bool {
	return strings.Count(body, Sentinel) >= 2
}

// StripTags removes every <...> span. It is not an HTML parser.
func StripTags(body string) string {
	return tagPattern.ReplaceAllString(body, "")
}

// Parse extracts the directive mapping from an event body. Keys are trimmed
// and lowercased, values are trimmed. A repeated key keeps its last value.
func Parse(body string) (map[string]string, error) {
	stripped := StripTags(body)

	// Line breaks are blanked one byte for one byte so the match offsets in
	// the normalized text address the same span in the stripped text.
	normalized := lineBreaks.Replace(stripped)

	loc := blockPattern.FindStringSubmatchIndex(normalized)
	if loc == nil {
		return nil, &domain.DirectiveError{Err: domain.ErrNoDirectivesFound}
	}

	return parseLines(strings.TrimSpace(stripped[loc[2]:loc[3]]))
}

func parseLines(block string) (map[string]string, error) {
	directives := make(map[string]string)

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, Separator)
		if len(parts) != 2 {
			return nil, &domain.DirectiveError{Line: line, Err: domain.ErrInvalidDirectiveLine}
		}
		directives[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}

	return directives, nil
}
