package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrEmptyDataset marks an upload with no header columns or no data rows.
// It is an expected, reportable condition, not an internal failure.
var ErrEmptyDataset = errors.New("dataset has no usable columns or rows")

// ReadDelimited parses one delimited upload into a Dataset. The payload is
// decoded as UTF-8 first and as Windows-1252 as a permissive fallback. The
// field delimiter comes from the source extension (.tsv means tab) or from
// sniffing the header line.
func ReadDelimited(sourceName string, r io.Reader) (Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset %q: %w", sourceName, err)
	}

	text, err := decodeText(raw)
	if err != nil {
		return Dataset{}, fmt.Errorf("decode dataset %q: %w", sourceName, err)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiterForSource(sourceName, text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("parse dataset %q: %w", sourceName, err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("dataset %q: %w", sourceName, ErrEmptyDataset)
	}

	header := records[0]
	if !hasNamedColumn(header) {
		return Dataset{}, fmt.Errorf("dataset %q: %w", sourceName, ErrEmptyDataset)
	}
	dataRows := records[1:]
	if len(dataRows) == 0 {
		return Dataset{}, fmt.Errorf("dataset %q: %w", sourceName, ErrEmptyDataset)
	}

	names := sanitizeHeader(header)
	columns := make([]Column, len(names))
	for col := range names {
		values := make([]string, len(dataRows))
		for row := range dataRows {
			values[row] = cellAt(dataRows[row], col)
		}
		columns[col] = Column{
			Name:    names[col],
			Type:    InferType(values),
			Samples: sampleValues(values),
		}
	}

	rows := make([][]any, len(dataRows))
	for i, record := range dataRows {
		typed := make([]any, len(columns))
		for col := range columns {
			typed[col] = convertCell(cellAt(record, col), columns[col].Type)
		}
		rows[i] = typed
	}

	return Dataset{
		SourceName: strings.TrimSpace(sourceName),
		TableName:  TableNameFromSource(sourceName),
		Columns:    columns,
		Rows:       rows,
	}, nil
}

func decodeText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("not valid UTF-8 and Windows-1252 fallback failed: %w", err)
	}
	return string(decoded), nil
}

func delimiterForSource(sourceName, text string) rune {
	if strings.EqualFold(path.Ext(sourceName), ".tsv") {
		return '\t'
	}
	headerLine, _, _ := strings.Cut(text, "\n")
	best, bestCount := ',', strings.Count(headerLine, ",")
	for _, candidate := range []rune{'\t', ';'} {
		if count := strings.Count(headerLine, string(candidate)); count > bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}

func hasNamedColumn(header []string) bool {
	for _, name := range header {
		if strings.TrimSpace(name) != "" {
			return true
		}
	}
	return false
}

func cellAt(record []string, index int) string {
	if index < len(record) {
		return record[index]
	}
	return ""
}

func sampleValues(values []string) []string {
	samples := make([]string, 0, MaxSampleValues)
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		samples = append(samples, value)
		if len(samples) == MaxSampleValues {
			break
		}
	}
	return samples
}
