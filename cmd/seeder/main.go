package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/screener"
	"github.com/poiesic/screener/config"
	"github.com/poiesic/screener/indexer"
)

var (
	count      = flag.Int("n", 1000, "number of entities to generate")
	namesFile  = flag.String("src", "", "file of seed names, one per line")
	outputFile = flag.String("out", "", "output file (default: stdout)")
	seed       = flag.Uint64("seed", 1, "random seed")
	indexPath  = flag.String("index", "", "index the generated entities into this directory")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

func main() {
	flag.Parse()

	names := linesFromSlice(nil)
	if *namesFile != "" {
		var err error
		names, err = linesFromFile(*namesFile)
		if err != nil {
			panic(err)
		}
	}

	out := *outputFile
	if out == "" && *indexPath != "" {
		out = filepath.Join(os.TempDir(), "screener-seed.jsonl")
		defer os.Remove(out)
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			panic(err)
		}
		w = f
	}

	gen := newGenerator(*seed, names)
	written, err := writeRecords(w, gen.Records(*count))
	if err != nil {
		panic(err)
	}
	if w != os.Stdout {
		if err := w.Close(); err != nil {
			panic(err)
		}
	}
	slog.Info("generated entities", "count", written, "output", out)

	if *indexPath == "" {
		return
	}
	if err := indexRecords(context.Background(), *indexPath, out); err != nil {
		panic(err)
	}
}

// indexRecords loads a generated file into the index at path.
func indexRecords(ctx context.Context, path, source string) error {
	db, err := screener.NewDatabase(config.NewConfig(config.WithIndexPath(path)))
	if err != nil {
		return err
	}
	defer db.Close()

	ix, err := db.NewIndexer(indexer.WithProgress(os.Stderr, 1000))
	if err != nil {
		return err
	}
	defer ix.Release()

	report, err := ix.Index(ctx, source, true)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", source, err)
	}
	slog.Info("indexed entities", "indexed", report.Indexed, "skipped", report.Skipped, "version", report.Version)
	return nil
}
