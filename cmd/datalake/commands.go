package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/nba-datalake/internal/domain"
	"github.com/andresuchdata/nba-datalake/internal/pipeline"
	"github.com/andresuchdata/nba-datalake/internal/service"
)

func runPipeline(c *cli.Context) error {
	a := appFrom(c)

	report := a.Runs.Run(c.Context, pipeline.RunOptions{
		Query:    strings.TrimSpace(c.String("query")),
		FileName: strings.TrimSpace(c.String("file-name")),
	})

	if c.Bool("json") {
		if err := writeJSON(c.App.Writer, report); err != nil {
			return err
		}
	} else {
		printReport(c.App.Writer, report)
	}

	if c.Bool("strict") && !report.OK() {
		return cli.Exit(fmt.Sprintf("%d step(s) failed", len(report.Failures())), 1)
	}
	return nil
}

func provisionBucket(c *cli.Context) error {
	res := appFrom(c).Pipeline.ProvisionBucket(c.Context)
	printSteps(c.App.Writer, res)
	return stepError(res)
}

func fetchPlayers(c *cli.Context) error {
	records, res := appFrom(c).Pipeline.Fetch(c.Context)
	if res.Failed() {
		return stepError(res)
	}

	body, err := records.Marshal()
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(c.App.Writer, "wrote %d records to %s\n", records.Len(), out)
		return nil
	}

	_, err = fmt.Fprintln(c.App.Writer, string(body))
	return err
}

func registerCatalog(c *cli.Context) error {
	p := appFrom(c).Pipeline
	settings := p.Settings()

	db := p.CreateDatabase(c.Context, settings.Database)
	table := p.CreateTable(c.Context, settings.Database, settings.TableDefinition())
	printSteps(c.App.Writer, db, table)

	if err := stepError(db); err != nil {
		return err
	}
	return stepError(table)
}

func submitQuery(c *cli.Context) error {
	sql := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if sql == "" {
		sql = appFrom(c).Config.Query.SQL
	}
	if sql == "" {
		return cli.Exit("usage: datalake query submit SQL", 2)
	}

	exec, err := appFrom(c).Queries.Submit(c.Context, sql)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "execution %s submitted to %s (results: %s)\n",
		exec.ID, exec.Database, exec.OutputLocation)
	return nil
}

func queryStatus(c *cli.Context) error {
	status, err := appFrom(c).Queries.Status(c.Context, c.Args().First())
	if errors.Is(err, service.ErrNoExecution) {
		return cli.Exit("no execution id given and none remembered", 1)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", status.ID)
	fmt.Fprintf(w, "STATE\t%s\n", status.State)
	if status.Reason != "" {
		fmt.Fprintf(w, "REASON\t%s\n", status.Reason)
	}
	if status.SubmittedAt != nil {
		fmt.Fprintf(w, "SUBMITTED\t%s\n", status.SubmittedAt.Format(time.RFC3339))
	}
	if status.CompletedAt != nil {
		fmt.Fprintf(w, "COMPLETED\t%s\n", status.CompletedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func listExecutions(c *cli.Context) error {
	execs, err := appFrom(c).Queries.Executions(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATABASE\tSUBMITTED\tSQL")
	for _, e := range execs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Database, e.SubmittedAt.Format(time.RFC3339), e.SQL)
	}
	return w.Flush()
}

func clearExecutions(c *cli.Context) error {
	if err := appFrom(c).Queries.ClearExecutions(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "remembered executions cleared")
	return nil
}

func listRuns(c *cli.Context) error {
	runs, err := appFrom(c).Runs.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tRECORDS\tOK\tFAILED STEPS")
	for _, r := range runs {
		var failed []string
		for _, s := range r.Failures() {
			failed = append(failed, string(s.Step))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.RecordCount, r.OK(), strings.Join(failed, ","))
	}
	return w.Flush()
}

func printReport(out io.Writer, report *domain.RunReport) {
	fmt.Fprintf(out, "run %s  bucket=%s  key=%s  records=%d\n",
		report.ID, report.Bucket, report.ObjectKey, report.RecordCount)
	printSteps(out, report.Steps...)
	if report.ExecutionID != "" {
		fmt.Fprintf(out, "query execution: %s\n", report.ExecutionID)
	}
}

func printSteps(out io.Writer, steps ...domain.StepResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tMESSAGE")
	for _, s := range steps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Step, s.Status.Label(), s.Duration.Round(time.Millisecond), s.Message)
	}
	_ = w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stepError(res domain.StepResult) error {
	if !res.Failed() {
		return nil
	}
	return cli.Exit(fmt.Sprintf("%s failed: %s", res.Step, res.Message), 1)
}
