package dataset

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Type is the inferred scalar type of a column. Unknown means the column
// carried no non-null values, so nothing could be inferred.
type Type string

const (
	TypeInteger  Type = "integer"
	TypeFloat    Type = "float"
	TypeText     Type = "text"
	TypeBoolean  Type = "boolean"
	TypeDatetime Type = "datetime"
	TypeUnknown  Type = "unknown"
)

// MaxSampleValues caps how many non-null example values a column description
// carries into the generation prompt.
const MaxSampleValues = 3

type Column struct {
	Name    string
	Type    Type
	Samples []string
}

// Dataset is one uploaded tabular source, ready to be loaded as a single
// relational table. Rows hold typed cell values; nil marks NULL.
type Dataset struct {
	SourceName string
	TableName  string
	Columns    []Column
	Rows       [][]any
}

// Summary is what a session retains about a loaded dataset once the row data
// lives in the execution engine.
type Summary struct {
	SourceName string
	TableName  string
	Columns    []Column
	RowCount   int
}

func (d Dataset) Summary() Summary {
	return Summary{
		SourceName: d.SourceName,
		TableName:  d.TableName,
		Columns:    d.Columns,
		RowCount:   len(d.Rows),
	}
}

var (
	nonIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
	identChars    = regexp.MustCompile(`[A-Za-z0-9]`)
)

// SanitizeColumnName replaces every character outside [A-Za-z0-9_] with an
// underscore, one replacement per character.
func SanitizeColumnName(name string) string {
	return nonIdentChars.ReplaceAllString(name, "_")
}

// TableNameFromSource derives a table name from an upload's source name:
// the trailing extension is stripped and spaces become underscores.
func TableNameFromSource(source string) string {
	base := path.Base(strings.TrimSpace(source))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.ReplaceAll(base, " ", "_")
}

// sanitizeHeader sanitizes all column names and disambiguates the result:
// names left without a single letter or digit (empty, or symbols-only input
// that sanitized to underscores) become col_<index> (zero-based), and later
// duplicates get a _2, _3, ... suffix.
func sanitizeHeader(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, raw := range names {
		name := SanitizeColumnName(raw)
		if !identChars.MatchString(name) {
			name = fmt.Sprintf("col_%d", i)
		}
		if seen[name] {
			base := name
			for suffix := 2; ; suffix++ {
				name = fmt.Sprintf("%s_%d", base, suffix)
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
