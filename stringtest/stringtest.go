package stringtest

import "strings"

// Input dedents an indented raw string literal for use as test input.
// It strips one leading and one trailing newline, removes the longest common
// leading whitespace from all non-blank lines, and blanks whitespace-only
// lines.
//
// Example:
//
//	in := stringtest.Input(`
//		key: value
//		nested:
//		  child: data`,
//	) // -> "key: value\nnested:\n  child: data"
func Input(s string) string {
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "\n")

	lines := strings.Split(s, "\n")
	indent := commonIndent(lines)

	for i, line := range lines {
		line = strings.TrimPrefix(line, indent)
		if strings.TrimSpace(line) == "" {
			line = ""
		}

		lines[i] = line
	}

	return strings.Join(lines, "\n")
}

// commonIndent returns the longest common leading whitespace shared by all
// lines with non-whitespace content.
func commonIndent(lines []string) string {
	indent := ""
	found := false

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if !found {
			indent = lead
			found = true

			continue
		}

		for !strings.HasPrefix(lead, indent) {
			indent = indent[:len(indent)-1]
		}
	}

	return indent
}

// JoinLF joins multiple strings with LF line endings.
// Use this to construct expected test output with explicit line endings.
//
// Example:
//
//	want := stringtest.JoinLF(
//		"line1",
//		"line2",
//		"line3",
//	) // -> "line1\nline2\nline3"
func JoinLF(ss ...string) string {
	var sb strings.Builder
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(s)
	}

	return sb.String()
}

// JoinCRLF joins multiple strings with CRLF line endings.
// Use this to construct expected test output with explicit line endings on
// Windows.
//
// Example:
//
//	want := stringtest.JoinCRLF(
//		"line1",
//		"line2",
//		"line3",
//	) // -> "line1\r\nline2\r\nline3"
func JoinCRLF(ss ...string) string {
	var sb strings.Builder
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte('\r')
			sb.WriteByte('\n')
		}

		sb.WriteString(s)
	}

	return sb.String()
}
