// mkfixture writes a synthetic P21 export for local runs.
// Usage: go run ./cmd/mkfixture --out testdata/p21.zip --encounters 4000
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aktin/p21import/internal/fixture"
)

func main() {
	opts := fixture.DefaultOptions()
	out := flag.String("out", "p21.zip", "output zip archive, or a directory with --dir")
	dir := flag.Bool("dir", false, "write the CSV files into a directory instead of a zip")
	flag.IntVar(&opts.Encounters, "encounters", opts.Encounters, "number of encounters")
	flag.IntVar(&opts.FirstID, "first-id", opts.FirstID, "first encounter id")
	invalid := flag.String("invalid", strings.Join(opts.InvalidIDs, ","), "comma separated ids with a broken fall.csv record")
	onlyFall := flag.Bool("only-fall", false, "write fall.csv only")
	flag.Parse()

	opts.InvalidIDs = nil
	for _, id := range strings.Split(*invalid, ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.InvalidIDs = append(opts.InvalidIDs, id)
		}
	}
	opts.Optional = !*onlyFall

	exp, err := fixture.Generate(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	if *dir {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
			os.Exit(1)
		}
		err = exp.WriteDir(*out)
	} else {
		err = exp.WriteZip(*out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d encounters (%d invalid) to %s\n", len(exp.IDs), len(opts.InvalidIDs), *out)
}
