// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/screener"
	"github.com/poiesic/screener/config"
	"github.com/poiesic/screener/core"
	"github.com/poiesic/screener/indexer"
	"github.com/poiesic/screener/model"
	"github.com/poiesic/screener/query"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 10 * time.Second

func openDatabase(c *cli.Context, opts ...config.ConfigOption) (*screener.Database, error) {
	cfg := configFromContext(c)
	for _, opt := range opts {
		opt(cfg)
	}
	db, err := screener.NewDatabase(cfg, screener.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return db, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(c, config.WithAddr(c.String("addr")))
	if err != nil {
		return err
	}
	defer db.Close()

	server, err := db.NewServer()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              db.Config().Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "index", db.Config().IndexPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func reindexCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c,
		config.WithIndexWorkers(c.Int("workers")),
		config.WithDataURL(c.String("data")))
	if err != nil {
		return err
	}
	defer db.Close()

	ix, err := db.NewIndexer(
		indexer.WithBatchSize(c.Int("batch-size")),
		indexer.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
		indexer.WithProgress(c.App.ErrWriter, c.Int("report-interval")),
	)
	if err != nil {
		return err
	}
	defer ix.Release()

	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", db.Config().IndexPath)
	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", db.Config().DataURL)
	fmt.Fprintln(c.App.ErrWriter)

	report, err := ix.Index(c.Context, db.Config().DataURL, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	if report.Unchanged {
		fmt.Fprintf(c.App.ErrWriter, "Index is up to date (version %s)\n", report.Version)
		return nil
	}
	fmt.Fprintf(c.App.ErrWriter, "Indexed %d entities, skipped %d, in %s\n",
		report.Indexed, report.Skipped, report.Duration.Round(time.Millisecond))
	return nil
}

func clearIndexCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ix, err := db.NewIndexer()
	if err != nil {
		return err
	}
	defer ix.Release()
	return ix.Clear(c.Context)
}

// parseProps turns name=value pairs into a property map.
func parseProps(pairs []string) (map[string][]string, error) {
	props := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid property %q: expected name=value", pair)
		}
		props[name] = append(props[name], value)
	}
	return props, nil
}

func matchCommand(c *cli.Context) error {
	props, err := parseProps(c.StringSlice("prop"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dataset, err := db.Catalog().Dataset(c.String("dataset"))
	if err != nil {
		return err
	}
	matcher, err := db.NewMatcher()
	if err != nil {
		return err
	}

	results, err := matcher.RunBatch(c.Context, dataset, core.Batch{
		"query": {Schema: c.String("schema"), Properties: props},
	}, c.Bool("fuzzy"), c.Int("limit"))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(results["query"])
}

func searchCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dataset, err := db.Catalog().Dataset(c.String("dataset"))
	if err != nil {
		return err
	}
	matcher, err := db.NewMatcher()
	if err != nil {
		return err
	}

	resp, err := matcher.Search(c.Context, dataset, query.TextRequest{
		Schema: c.String("schema"),
		Text:   strings.Join(c.Args().Slice(), " "),
		Fuzzy:  c.Bool("fuzzy"),
		Limit:  c.Int("limit"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", resp.Total)
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tID\tSCHEMA\tCAPTION")
	for _, hit := range resp.Results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", hit.Score, hit.ID, hit.Schema, hit.Caption)
	}
	return w.Flush()
}

func schemataCommand(c *cli.Context) error {
	m, err := model.Default()
	if path := c.String("model"); path != "" {
		m, err = model.LoadFile(path)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEMA\tLABEL\tEXTENDS\tDESCENDANTS\tPROPERTIES")
	for _, s := range m.Schemata() {
		parents := make([]string, 0, len(s.Parents()))
		for _, p := range s.Parents() {
			parents = append(parents, p.Name)
		}
		name := s.Name
		if s.Abstract {
			name += " (abstract)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", name, s.Label,
			strings.Join(parents, ","), len(s.Descendants())-1, len(s.Properties()))
	}
	return w.Flush()
}
