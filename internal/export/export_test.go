package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tabletalk/tabletalk/internal/query"
)

func sampleResult() query.Result {
	loaded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return query.Result{
		Columns: []string{"region", "total", "orders", "active", "last_order"},
		Rows: [][]any{
			{"north", float64(120.5), int64(3), true, loaded},
			{"south", nil, int64(0), false, nil},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := strings.Join([]string{
		"region,total,orders,active,last_order",
		"north,120.5,3,true,2024-03-01T09:30:00Z",
		"south,,0,false,",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("csv output = %q, want %q", buf.String(), want)
	}
}

func TestWriteCSVPadsShortRows(t *testing.T) {
	var buf bytes.Buffer
	result := query.Result{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{int64(1)}},
	}
	if err := WriteCSV(&buf, result); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if got := buf.String(); got != "a,b\n1,\n" {
		t.Fatalf("csv output = %q", got)
	}
}

func TestWriteParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected parquet bytes")
	}

	// A map row type carries no schema of its own, so the reader gets the
	// file's schema explicitly.
	file, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(buf.Bytes()), file.Schema())
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]any, 2)
	for i := range rows {
		rows[i] = map[string]any{}
	}
	n, err := reader.Read(rows)
	if n != 2 {
		t.Fatalf("Read() = %d rows, err = %v", n, err)
	}
	if rows[0]["region"] != "north" {
		t.Fatalf("region = %v", rows[0]["region"])
	}
	if rows[0]["orders"] != int64(3) {
		t.Fatalf("orders = %v", rows[0]["orders"])
	}
	if rows[1]["total"] != nil {
		t.Fatalf("total should be null, got %v", rows[1]["total"])
	}
}

func TestWriteParquetRejectsEmptyColumns(t *testing.T) {
	if err := WriteParquet(&bytes.Buffer{}, query.Result{}); err == nil {
		t.Fatal("WriteParquet() should fail without columns")
	}
}
