// Package demo generates a deterministic sample sales dataset for trying
// the service without real data.
package demo

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"
)

type Generator struct {
	rnd   *rand.Rand
	start time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// WriteCSV emits a sales orders CSV with a header and the requested number
// of data rows. The same seed always produces the same file.
func (g *Generator) WriteCSV(w io.Writer, rows int) error {
	writer := csv.NewWriter(w)
	header := []string{"order_id", "order_date", "region", "product", "category", "quantity", "unit_price", "total"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write demo header: %w", err)
	}

	for i := 0; i < rows; i++ {
		product, category, basePrice := g.pickProduct()
		quantity := g.rnd.Intn(5) + 1
		unitPrice := round2(basePrice * (0.9 + g.rnd.Float64()*0.2))
		orderDate := g.start.AddDate(0, 0, g.rnd.Intn(365))

		record := []string{
			strconv.Itoa(1000 + i),
			orderDate.Format("2006-01-02"),
			pickOne(g.rnd, []string{"north", "south", "east", "west"}),
			product,
			category,
			strconv.Itoa(quantity),
			strconv.FormatFloat(unitPrice, 'f', 2, 64),
			strconv.FormatFloat(round2(float64(quantity)*unitPrice), 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write demo row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush demo csv: %w", err)
	}
	return nil
}

func (g *Generator) pickProduct() (product, category string, basePrice float64) {
	products := []struct {
		name     string
		category string
		price    float64
	}{
		{"laptop", "electronics", 1100},
		{"monitor", "electronics", 320},
		{"keyboard", "electronics", 75},
		{"desk", "furniture", 450},
		{"chair", "furniture", 280},
		{"lamp", "furniture", 60},
		{"notebook", "stationery", 8},
		{"pen set", "stationery", 15},
	}
	pick := products[g.rnd.Intn(len(products))]
	return pick.name, pick.category, pick.price
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
