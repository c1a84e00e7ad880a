package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReadField returns the value of a named field.
//
// Two line forms are recognized, in order:
//
//	- **{key}**: `{value}`        (named single-value lines)
//	{key}: {value}                (condition and context block entries)
//
// Dotted keys (e.g. "context.tech_stack.framework") resolve nested entries
// of the Context block. The returned value is the literal string,
// uninterpreted. The second return is false when the key is absent.
func ReadField(doc, key string) (string, bool) {
	head := editableRegion(doc)

	if strings.Contains(key, ".") {
		return readNested(head, key)
	}

	if m := boldFieldPattern(key).FindStringSubmatch(head); m != nil {
		return m[2], true
	}
	if m := plainFieldPattern(key).FindStringSubmatch(head); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	return "", false
}

// fieldValue makes a value safe to embed in a single-line field: a backtick
// would terminate the bold form's value early and a newline would break the
// line orientation of both forms, leaving the field unreadable afterward.
var fieldValue = strings.NewReplacer("`", "'", "\n", " ", "\r", " ")

// WriteField replaces the value portion of an existing field line in place.
// All other bytes of the document are unchanged. The value is sanitized so
// the written field always reads back: ReadField after WriteField never
// comes up absent.
//
// The key must already exist in the record (records are pre-seeded from the
// template). When the key pattern is absent the write is a no-op and
// replaced is false; callers must abort rather than retry.
func WriteField(doc, key, value string) (out string, replaced bool) {
	head := editableRegion(doc)
	value = fieldValue.Replace(value)

	for _, pattern := range []*regexp.Regexp{boldFieldPattern(key), plainFieldPattern(key)} {
		loc := pattern.FindStringSubmatchIndex(head)
		if loc == nil {
			continue
		}
		// Replace only group 2 (the value bytes) of the first match.
		out = doc[:loc[4]] + value + doc[loc[5]:]
		return out, true
	}
	return doc, false
}

// AppendHistory inserts one (timestamp, phase, action, result) row into the
// history table, immediately before the Notes sentinel. All prior rows stay
// present, unedited and in order.
func AppendHistory(doc string, ts time.Time, phase, action, result string) (string, error) {
	lines := strings.Split(doc, "\n")

	sentinel := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == NotesSentinel {
			sentinel = i
			break
		}
	}
	if sentinel == -1 {
		return doc, ErrNoSentinel
	}

	// Skip back over the blank lines that separate the table from the
	// sentinel so rows stay contiguous.
	at := sentinel
	for at > 0 && strings.TrimSpace(lines[at-1]) == "" {
		at--
	}

	row := fmt.Sprintf("| %s | %s | %s | %s |",
		ts.UTC().Format(time.RFC3339),
		tableCell(phase), tableCell(action), tableCell(result))

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:at]...)
	out = append(out, row)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n"), nil
}

// HistoryRows returns the data rows of the history table in order, each as
// a [timestamp, phase, action, result] slice.
func HistoryRows(doc string) [][4]string {
	var rows [][4]string
	for _, line := range strings.Split(editableRegion(doc), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			continue
		}
		cells := splitRow(trimmed)
		if len(cells) != 4 {
			continue
		}
		// Skip the header and its separator.
		if cells[0] == "Timestamp" || strings.HasPrefix(cells[0], "---") {
			continue
		}
		rows = append(rows, [4]string{cells[0], cells[1], cells[2], cells[3]})
	}
	return rows
}

// ReadCondition reads one of the nine workflow gates.
func ReadCondition(doc, key string) (value bool, ok bool) {
	raw, ok := ReadField(doc, key)
	if !ok {
		return false, false
	}
	return raw == "true", true
}

// SetCondition sets a workflow gate to true. Flags are monotonic: setting an
// already-true flag is a no-op, and there is no way to clear one.
func SetCondition(doc, key string) (string, error) {
	if !IsConditionKey(key) {
		return doc, fmt.Errorf("%w: %s is not a condition flag", ErrFieldMissing, key)
	}
	out, replaced := WriteField(doc, key, "true")
	if !replaced {
		return doc, fmt.Errorf("%w: %s", ErrFieldMissing, key)
	}
	return out, nil
}

// editableRegion returns the part of the document automated writers may
// touch: everything before the Notes sentinel, or the whole document when
// the sentinel is absent.
func editableRegion(doc string) string {
	if strings.HasPrefix(doc, NotesSentinel) {
		return ""
	}
	if idx := strings.Index(doc, "\n"+NotesSentinel); idx >= 0 {
		return doc[:idx+1]
	}
	return doc
}

// boldFieldPattern matches a named single-value line: - **key**: `value`
func boldFieldPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^(- \*\*` + regexp.QuoteMeta(key) + "\\*\\*: `)([^`]*)(`)[ \t]*$")
}

// plainFieldPattern matches a condition/context block entry: key: value
func plainFieldPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^([ \t]*` + regexp.QuoteMeta(key) + `: )(.*)$`)
}

// readNested resolves a dotted key against the Context block, which is
// parsed as YAML. Only reads take this path: nested writes would require a
// deterministic re-render of the whole block.
func readNested(head, key string) (string, bool) {
	segments := strings.Split(key, ".")
	if segments[0] == "context" {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return "", false
	}

	block, ok := fencedBlock(head, "## Context")
	if !ok {
		return "", false
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(block), &data); err != nil {
		return "", false
	}

	var current any = data
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[seg]
		if !ok {
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// fencedBlock extracts the content of the first fenced code block after the
// given heading.
func fencedBlock(doc, heading string) (string, bool) {
	idx := strings.Index(doc, heading)
	if idx < 0 {
		return "", false
	}
	rest := doc[idx:]

	open := strings.Index(rest, "```")
	if open < 0 {
		return "", false
	}
	// Skip past the opening fence line (it may carry a language tag).
	rest = rest[open:]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return "", false
	}
	rest = rest[nl+1:]

	closing := strings.Index(rest, "```")
	if closing < 0 {
		return "", false
	}
	return rest[:closing], true
}

// tableCell makes a value safe to embed in a markdown table row.
func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "/")
}

// splitRow splits a markdown table row into trimmed cells.
func splitRow(row string) []string {
	row = strings.Trim(row, "|")
	parts := strings.Split(row, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
