package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/nba-datalake/internal/app"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/pkg/logger"
)

type appKey struct{}

func initApp(c *cli.Context) error {
	cfg := config.Load()

	level := c.String("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	if c.Bool("json-logs") {
		logger.UseJSON(os.Stderr)
	} else {
		logger.UseConsole(os.Stderr)
	}
	logger.SetLevel(level)

	a, err := app.Build(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to initialize: %v", err), 1)
	}

	c.Context = context.WithValue(c.Context, appKey{}, a)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		return a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func main() {
	cliApp := &cli.App{
		Name:  "datalake",
		Usage: "Bootstrap the NBA player data lake: bucket, raw data, catalog and queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "Write logs as JSON lines to stderr",
			},
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the whole pipeline once",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Usage:   "SQL to submit after the catalog is registered",
						EnvVars: []string{"QUERY_SQL"},
					},
					&cli.StringFlag{
						Name:  "file-name",
						Usage: "Object name under the raw prefix (defaults to RAW_FILE_NAME)",
					},
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Exit with status 1 when any step failed",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the run report as JSON",
					},
				},
				Action: runPipeline,
			},
			{
				Name:   "bucket",
				Usage:  "Create or check the storage bucket",
				Action: provisionBucket,
			},
			{
				Name:  "fetch",
				Usage: "Fetch the players feed and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the records to this file instead of stdout",
					},
				},
				Action: fetchPlayers,
			},
			{
				Name:   "catalog",
				Usage:  "Register the catalog database and players table",
				Action: registerCatalog,
			},
			{
				Name:  "query",
				Usage: "Submit queries and look up their status",
				Subcommands: []*cli.Command{
					{
						Name:      "submit",
						Usage:     "Submit SQL against the catalog database",
						ArgsUsage: "SQL",
						Action:    submitQuery,
					},
					{
						Name:      "status",
						Usage:     "Show the state of an execution (defaults to the latest one)",
						ArgsUsage: "[EXECUTION_ID]",
						Action:    queryStatus,
					},
					{
						Name:  "list",
						Usage: "List remembered executions",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 20},
						},
						Action: listExecutions,
					},
					{
						Name:   "clear",
						Usage:  "Forget all remembered executions",
						Action: clearExecutions,
					},
				},
			},
			{
				Name:  "runs",
				Usage: "List recorded pipeline runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: listRuns,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
