// Package sanitizer neutralizes markup in untrusted note input.
//
// It is a deny-list filter: rich text keeps arbitrary markup except for a
// fixed set of dangerous tags, inline event handler attributes and script
// bearing URL schemes. Plain text fields (names, tags) lose all markup.
package sanitizer

import (
	"regexp"
	"strings"
)

var (
	markupPattern = regexp.MustCompile(`<[^>]*>`)

	dangerousTagPattern = regexp.MustCompile(
		`(?i)<\s*/?(script|iframe|object|embed|form|input|link|meta|style|base|applet)[^>]*>`)

	// Only the attribute name and '=' are matched; a quoted value that follows is left behind.
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)

	dangerousSchemePattern = regexp.MustCompile(`(?i)(javascript|data|vbscript)\s*:`)
)

// A Pass is one rewrite step of the rich text pipeline.
type Pass func(string) string

func removeAll(re *regexp.Regexp) Pass {
	return func(s string) string {
		return re.ReplaceAllLiteralString(s, "")
	}
}

var (
	StripDangerousTags    = removeAll(dangerousTagPattern)
	StripEventHandlers    = removeAll(eventHandlerPattern)
	StripDangerousSchemes = removeAll(dangerousSchemePattern)
)

// RichTextPipeline is applied in order, each pass reading the previous output.
var RichTextPipeline = []Pass{
	StripDangerousTags,
	StripEventHandlers,
	StripDangerousSchemes,
}

// StripAllMarkup removes every <...> sequence and trims the result.
// Tags are not balanced and entities are not decoded.
func StripAllMarkup(input *string) *string {
	if input == nil {
		return nil
	}
	out := strings.TrimSpace(markupPattern.ReplaceAllLiteralString(*input, ""))
	return &out
}

// SanitizeRichText runs RichTextPipeline over input and trims the result.
func SanitizeRichText(input *string) *string {
	if input == nil {
		return nil
	}
	out := Rich(*input)
	return &out
}

// SanitizePlainText strips all markup. A result that is empty after trimming
// is reported as nil so required fields can be rejected.
func SanitizePlainText(input *string) *string {
	if input == nil {
		return nil
	}
	out, ok := Plain(*input)
	if !ok {
		return nil
	}
	return &out
}

// Plain is SanitizePlainText for non-optional input. ok is false when nothing
// but markup and whitespace was present.
func Plain(s string) (string, bool) {
	out := *StripAllMarkup(&s)
	return out, out != ""
}

// Rich is SanitizeRichText for non-optional input.
func Rich(s string) string {
	for _, pass := range RichTextPipeline {
		s = pass(s)
	}
	return strings.TrimSpace(s)
}
