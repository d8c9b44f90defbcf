// Package argv turns shell-like command strings into argument vectors.
//
// The rules are deliberately permissive and do not follow POSIX shell
// semantics: a double quote toggles quoting and is dropped from the output,
// whitespace outside quotes separates tokens, and an unmatched quote is
// closed at end of input. Nothing is escaped, globbed or expanded. Every
// token reaches the executed program literally; callers must not pass
// adversarial input expecting a shell to neutralize it.
package argv

import "strings"

// Build splits command into tokens.
// Runs of whitespace produce no empty tokens; quoted empty strings are dropped too.
func Build(command string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range command {
		switch {
		case r == '"':
			inQuote = !inQuote
		case isSpace(r) && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	// Unmatched quote closes here
	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// FromTokens returns an owned copy of tokens with empty entries removed.
func FromTokens(tokens []string) []string {
	args := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		args = append(args, strings.Clone(t))
	}
	return args
}

// Join renders args back into a single string for diagnostics.
// Tokens containing whitespace are wrapped in double quotes so that
// Build(Join(args)) round-trips for quote-free tokens.
func Join(args []string) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if strings.ContainsFunc(a, isSpace) {
			sb.WriteByte('"')
			sb.WriteString(a)
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(a)
	}
	return sb.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
