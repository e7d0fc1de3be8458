package export

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tabletalk/tabletalk/internal/query"
)

// WriteParquet encodes the result set with a schema inferred from the
// first non-null value in each column. Columns that are entirely null
// fall back to optional strings.
func WriteParquet(w io.Writer, result query.Result) error {
	if len(result.Columns) == 0 {
		return fmt.Errorf("result has no columns")
	}

	group := parquet.Group{}
	for i, name := range result.Columns {
		group[name] = parquet.Optional(nodeForColumn(result.Rows, i))
	}
	schema := parquet.NewSchema("result", group)

	writer := parquet.NewGenericWriter[map[string]any](w, schema)
	record := make(map[string]any, len(result.Columns))
	for _, row := range result.Rows {
		clear(record)
		for i, name := range result.Columns {
			if i >= len(row) || row[i] == nil {
				continue
			}
			record[name] = parquetValue(row[i])
		}
		if _, err := writer.Write([]map[string]any{record}); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func nodeForColumn(rows [][]any, index int) parquet.Node {
	for _, row := range rows {
		if index >= len(row) || row[index] == nil {
			continue
		}
		switch row[index].(type) {
		case int64:
			return parquet.Int(64)
		case int32:
			return parquet.Int(32)
		case float64:
			return parquet.Leaf(parquet.DoubleType)
		case float32:
			return parquet.Leaf(parquet.FloatType)
		case bool:
			return parquet.Leaf(parquet.BooleanType)
		default:
			return parquet.String()
		}
	}
	return parquet.String()
}

func parquetValue(value any) any {
	switch v := value.(type) {
	case int64, int32, float64, float32, bool, string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
