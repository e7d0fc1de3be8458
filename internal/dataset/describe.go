package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTableNameConflict marks two distinct sources normalizing to the same
// table name. The caller must surface it; datasets are never silently merged.
var ErrTableNameConflict = errors.New("table name conflict")

type ColumnDescription struct {
	Name   string   `json:"-"`
	DType  string   `json:"dtype"`
	Sample []string `json:"sample"`
}

type TableDescription struct {
	Table   string
	Columns []ColumnDescription
}

// Description is a read-only structural snapshot of one or more datasets,
// built fresh per query and used only as generation-prompt context.
type Description struct {
	Tables []TableDescription
}

// Describe builds a Description from dataset summaries, preserving input
// order. Two summaries with the same table name are an error.
func Describe(summaries []Summary) (Description, error) {
	seen := make(map[string]string, len(summaries))
	tables := make([]TableDescription, 0, len(summaries))
	for _, summary := range summaries {
		if other, ok := seen[summary.TableName]; ok {
			return Description{}, fmt.Errorf("%w: %q and %q both normalize to table %q",
				ErrTableNameConflict, other, summary.SourceName, summary.TableName)
		}
		seen[summary.TableName] = summary.SourceName

		columns := make([]ColumnDescription, 0, len(summary.Columns))
		for _, column := range summary.Columns {
			sample := column.Samples
			if sample == nil {
				sample = []string{}
			}
			columns = append(columns, ColumnDescription{
				Name:   column.Name,
				DType:  string(column.Type),
				Sample: sample,
			})
		}
		tables = append(tables, TableDescription{Table: summary.TableName, Columns: columns})
	}
	return Description{Tables: tables}, nil
}

// MarshalJSON renders the description as {table: {column: {dtype, sample}}}.
// encoding/json sorts map keys, so the output doubles as a canonical form.
func (d Description) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]ColumnDescription, len(d.Tables))
	for _, table := range d.Tables {
		columns := make(map[string]ColumnDescription, len(table.Columns))
		for _, column := range table.Columns {
			columns[column.Name] = column
		}
		out[table.Table] = columns
	}
	return json.Marshal(out)
}

// Canonical returns the stable text form embedded verbatim in prompts.
func (d Description) Canonical() (string, error) {
	encoded, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode schema description: %w", err)
	}
	return string(encoded), nil
}
