package pv

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"fiduciaire/pkg/errors"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Z0-9_]+)\s*\}\}`)

// rawSuffix marks tokens whose value is already HTML.
const rawSuffix = "_HTML"

// Substitute replaces every {{TOKEN}} in tpl. Values are HTML-escaped
// except for *_HTML tokens. Unknown tokens are reported together.
func Substitute(tpl string, vars map[string]string) (string, error) {
	var missing []string
	seen := make(map[string]bool)

	out := tokenPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
			return match
		}
		if strings.HasSuffix(name, rawSuffix) {
			return value
		}
		return html.EscapeString(value)
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", errors.Newf(errors.ErrValidation, "variables non résolues: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Tokens lists the distinct tokens of tpl in order of first appearance.
func Tokens(tpl string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tokens = append(tokens, m[1])
		}
	}
	return tokens
}

// Validate checks that every token of tpl is known. Used when a custom
// template is saved, before any document exists.
func Validate(tpl string) error {
	if strings.TrimSpace(tpl) == "" {
		return errors.New(errors.ErrValidation, "le modèle est vide")
	}
	var unknown []string
	for _, t := range Tokens(tpl) {
		if !KnownToken(t) {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		return errors.Newf(errors.ErrValidation, "variables inconnues: %s", strings.Join(unknown, ", "))
	}
	return nil
}
