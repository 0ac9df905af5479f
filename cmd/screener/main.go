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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/screener/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := config.DefaultConfig()
	return &cli.App{
		Name:  "screener",
		Usage: "Match people and companies against sanctions and watch lists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"SCREENER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "index",
				Aliases: []string{"d"},
				Usage:   "Path to the index directory",
				Value:   defaults.IndexPath,
				EnvVars: []string{"SCREENER_INDEX_PATH"},
			},
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Path to a YAML model definition (default: built-in model)",
				EnvVars: []string{"SCREENER_MODEL_PATH"},
			},
			&cli.StringFlag{
				Name:    "manifest",
				Usage:   "Path to a YAML dataset manifest",
				EnvVars: []string{"SCREENER_MANIFEST_PATH"},
			},
			&cli.IntFlag{
				Name:    "max-page",
				Usage:   "Maximum number of results per query",
				Value:   defaults.MaxPage,
				EnvVars: []string{"SCREENER_MAX_PAGE"},
			},
			&cli.IntFlag{
				Name:    "match-page",
				Usage:   "Default number of candidates per match query",
				Value:   defaults.MatchPage,
				EnvVars: []string{"SCREENER_MATCH_PAGE"},
			},
			&cli.IntFlag{
				Name:    "search-page",
				Usage:   "Default number of search results",
				Value:   defaults.SearchPage,
				EnvVars: []string{"SCREENER_SEARCH_PAGE"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Time limit for a match batch or search",
				Value:   defaults.RequestTimeout,
				EnvVars: []string{"SCREENER_REQUEST_TIMEOUT"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the matching API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "HTTP listen address",
						Value:   defaults.Addr,
						EnvVars: []string{"SCREENER_ADDR"},
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Load entities from a JSON lines file or URL into the index",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Usage:    "Entity source, a file path or http(s) URL",
						Required: true,
						EnvVars:  []string{"SCREENER_DATA_URL"},
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Reindex even if the source is unchanged",
					},
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Number of concurrent index writers",
						Value:   defaults.IndexWorkers,
						EnvVars: []string{"SCREENER_INDEX_WORKERS"},
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entities written per transaction",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entities",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum download attempts",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "clear-index",
				Usage:  "Delete all index data",
				Action: clearIndexCommand,
			},
			{
				Name:   "match",
				Usage:  "Match a single example given on the command line",
				Action: matchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dataset",
						Usage: "Dataset or collection to match against",
						Value: config.DefaultDataset,
					},
					&cli.StringFlag{
						Name:     "schema",
						Usage:    "Schema of the example, e.g. Person or Company",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "prop",
						Aliases: []string{"p"},
						Usage:   "Property value as name=value, repeatable",
					},
					&cli.BoolFlag{
						Name:  "fuzzy",
						Usage: "Enable n-gram matching of partial names",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of candidates to return",
					},
				},
			},
			{
				Name:   "schemata",
				Usage:  "List the schemata of the entity model",
				Action: schemataCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a free-text search",
				ArgsUsage: "<text>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dataset",
						Usage: "Dataset or collection to search",
						Value: config.DefaultDataset,
					},
					&cli.StringFlag{
						Name:  "schema",
						Usage: "Only return entities of this schema",
					},
					&cli.BoolFlag{
						Name:  "fuzzy",
						Usage: "Enable n-gram matching of partial names",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of results to return",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// configFromContext builds the service configuration from global flags.
func configFromContext(c *cli.Context) *config.Config {
	return config.NewConfig(
		config.WithIndexPath(c.String("index")),
		config.WithModelPath(c.String("model")),
		config.WithManifestPath(c.String("manifest")),
		config.WithPages(c.Int("max-page"), c.Int("match-page"), c.Int("search-page")),
		config.WithRequestTimeout(c.Duration("timeout")),
	)
}
