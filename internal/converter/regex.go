package converter

import (
	"regexp"
	"strings"
)

// Regex fragments follow uBlock's make-rulesets.js. The engine matches
// url-filter against the whole URL, so every pattern is emitted in
// full-match form.
const (
	// separator stands for ^ inside a pattern
	restrSeparator = `[^%.0-9a-z_-]`
	// separatorEnd stands for a trailing ^, which also matches the end of the URL
	restrSeparatorEnd = `(?:[^%.0-9a-z_-].*)?`
	// hostname anchor for ||
	restrHostnameAnchor1 = `[a-z][a-z0-9+.-]*://(?:[^/?#]+\.)?`
	// hostname anchor for ||.
	restrHostnameAnchor2 = `[a-z][a-z0-9+.-]*://(?:[^/?#]+)?`
)

var (
	// characters to escape, * and ^ are handled separately
	rePlainChars        = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	reAsterisks         = regexp.MustCompile(`\*+`)
)

// PatternToRegex converts an ABP/uBlock pattern to a url-filter that must
// match the whole URL.
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ".*"
	}

	s := pattern
	hostAnchor, leftAnchor, rightAnchor := false, false, false

	if strings.HasPrefix(s, "||") {
		hostAnchor = true
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		leftAnchor = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "|") {
		rightAnchor = true
		s = s[:len(s)-1]
	}

	// /regex/ literals are searched for anywhere in the URL
	if len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return ".*(?:" + s[1:len(s)-1] + ").*"
	}

	trailingSeparator := strings.HasSuffix(s, "^") && !rightAnchor
	if trailingSeparator {
		s = strings.TrimSuffix(s, "^")
	}
	// leading and trailing * are implicit
	leadingWildcard := strings.HasPrefix(s, "*")
	trailingWildcard := strings.HasSuffix(s, "*")
	s = reDanglingAsterisks.ReplaceAllString(s, "")

	reStr := rePlainChars.ReplaceAllString(s, `\$0`)
	reStr = strings.ReplaceAll(reStr, "^", restrSeparator)
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	var b strings.Builder
	switch {
	case hostAnchor && !leadingWildcard && strings.HasPrefix(reStr, `\.`):
		b.WriteString(restrHostnameAnchor2)
	case hostAnchor && !leadingWildcard:
		b.WriteString(restrHostnameAnchor1)
	case leftAnchor && !leadingWildcard:
	default:
		b.WriteString(".*")
	}
	b.WriteString(reStr)
	switch {
	case trailingSeparator:
		b.WriteString(restrSeparatorEnd)
	case rightAnchor && !trailingWildcard:
	default:
		b.WriteString(".*")
	}
	return b.String()
}

// ValidateRegex reports whether the engine can compile pattern
func ValidateRegex(pattern string) bool {
	_, err := regexp.Compile("^(?:" + pattern + ")$")
	return err == nil
}
