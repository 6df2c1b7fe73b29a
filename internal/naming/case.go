// Package naming converts identifiers between the wire style used by remote
// services (PascalCase) and the local style exposed to callers (snake_case).
package naming

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
)

// Transcoder converts names across the wire/local boundary.
// Implementations must be deterministic and must never fail: names they
// cannot map are returned unchanged.
type Transcoder interface {
	ToLocal(wireName string) string
	ToWire(localName string) string
}

// Default is the transcoder used when a session is not given one.
type Default struct{}

// ToLocal implements Transcoder.
func (Default) ToLocal(wireName string) string { return ToLocal(wireName) }

// ToWire implements Transcoder.
func (Default) ToWire(localName string) string { return ToWire(localName) }

// ToLocal converts CamelCase to snake_case
// Handles acronyms properly (HTTPRequest -> http_request, MD5OfBody -> md5_of_body)
func ToLocal(s string) string {
	if s == "" {
		return s
	}

	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				// Add underscore before uppercase letter if:
				// 1. Previous char is lowercase or a digit following a lowercase run
				// 2. Next char is lowercase (for acronyms like HTTPRequest -> http_request)
				if unicode.IsLower(prev) {
					result.WriteRune('_')
				} else if prev != '_' && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ToWire converts snake_case, kebab-case or lowerCamel names to PascalCase.
// Names that are already PascalCase come back unchanged.
func ToWire(s string) string {
	if s == "" {
		return s
	}
	if !strings.ContainsAny(s, "_- ") && unicode.IsUpper([]rune(s)[0]) {
		return s
	}
	return strcase.ToCamel(s)
}
