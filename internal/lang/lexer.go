package lang

import "strings"

// line is one surviving source line. raw keeps the original text so the
// capability block can tell indented continuation lines apart; text is the
// trimmed form every matcher works on.
type line struct {
	raw  string
	text string
	num  int
}

// filterLines normalizes a workflow document into the ordered line sequence
// the parser scans: blank lines and comment lines (# or //) are dropped,
// line numbers are preserved for warnings.
func filterLines(source string) []line {
	var out []line
	for i, raw := range strings.Split(source, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}
		out = append(out, line{raw: raw, text: text, num: i + 1})
	}
	return out
}

// continuation reports whether a line belongs to an open capability block:
// either bulleted with "-" or indented relative to the block header.
func (l line) continuation() bool {
	if strings.HasPrefix(l.text, "-") {
		return true
	}
	return strings.HasPrefix(l.raw, " ") || strings.HasPrefix(l.raw, "\t")
}
