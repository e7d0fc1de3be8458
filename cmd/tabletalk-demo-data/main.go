package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tabletalk/tabletalk/internal/demo"
)

func main() {
	out := flag.String("out", "sales.csv", "Output file path (- for stdout)")
	rows := flag.Int("rows", 500, "Number of data rows to generate")
	seed := flag.Int64("seed", 1, "Random seed; the same seed reproduces the same file")
	flag.Parse()

	if *rows <= 0 {
		_, _ = fmt.Fprintln(os.Stderr, "rows must be positive")
		os.Exit(2)
	}

	generator := demo.NewGenerator(*seed)

	if *out == "-" {
		if err := generator.WriteCSV(os.Stdout, *rows); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "generate demo data: %v\n", err)
			os.Exit(1)
		}
		return
	}

	file, err := os.Create(*out)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := generator.WriteCSV(file, *rows); err != nil {
		_ = file.Close()
		_, _ = fmt.Fprintf(os.Stderr, "generate demo data: %v\n", err)
		os.Exit(1)
	}
	if err := file.Close(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "close %s: %v\n", *out, err)
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", *rows, *out)
}
