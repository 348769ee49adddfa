package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v3"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/batch"
	"github.com/haowjy/meridian-claude-go/jobstore"
)

func batchCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "JSONL file with one request per line",
		Required: true,
	}
	return &cli.Command{
		Name:  "batch",
		Usage: "Create and track message batches",
		Commands: []*cli.Command{
			{
				Name:   "submit",
				Usage:  "Submit a batch and print its id",
				Flags:  []cli.Flag{fileFlag},
				Action: cmdBatchSubmit,
			},
			{
				Name:      "status",
				Usage:     "Show the current state of a batch",
				ArgsUsage: "<batch-id>",
				Action:    cmdBatchStatus,
			},
			{
				Name:      "wait",
				Usage:     "Poll a batch until it ends and print its results",
				ArgsUsage: "<batch-id>",
				Action:    cmdBatchWait,
			},
			{
				Name:      "results",
				Usage:     "Print the results of an ended batch",
				ArgsUsage: "<batch-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Also write results as JSONL to this file"},
				},
				Action: cmdBatchResults,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a batch",
				ArgsUsage: "<batch-id>",
				Action:    cmdBatchCancel,
			},
			{
				Name:  "run",
				Usage: "Run any number of requests as chunked batches, resumable",
				Flags: []cli.Flag{
					fileFlag,
					&cli.IntFlag{Name: "chunk-size", Usage: "Requests per batch (default from config)"},
					&cli.StringFlag{Name: "db", Usage: "Job database", Value: filepath.Join(".claude", "jobs.db")},
					&cli.BoolFlag{Name: "resume", Usage: "Resume the latest unfinished job"},
					&cli.StringFlag{Name: "job", Usage: "Resume this job id"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write results as JSONL to this file"},
				},
				Action: cmdBatchRun,
			},
			{
				Name:  "jobs",
				Usage: "List recorded chunked jobs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "Job database", Value: filepath.Join(".claude", "jobs.db")},
				},
				Action: cmdBatchJobs,
			},
		},
	}
}

func cmdBatchSubmit(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}
	requests, err := s.readRequestFile(client, cmd.String("file"))
	if err != nil {
		return err
	}

	handle, err := client.SubmitBatch(ctx, requests)
	if err != nil {
		return err
	}
	s.out.Success("submitted batch %s with %d requests (expires %s)",
		handle.ID, handle.RequestCount, handle.ExpiresAt.Format("2006-01-02 15:04"))
	return nil
}

func cmdBatchStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "batch-id")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}

	b, err := client.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	s.printBatch(b)
	return nil
}

func cmdBatchWait(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "batch-id")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client(batch.WithOnPoll(s.progress))
	if err != nil {
		return err
	}

	results, err := client.WaitForBatch(ctx, id)
	if err != nil {
		return err
	}
	s.printResults(results)
	return nil
}

func cmdBatchResults(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "batch-id")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}

	results, err := client.BatchResults(ctx, id)
	if err != nil {
		return err
	}
	s.printResults(results)
	return writeResultsFile(cmd.String("out"), results)
}

func cmdBatchCancel(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "batch-id")
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}

	b, err := client.CancelBatch(ctx, id)
	if err != nil {
		return err
	}
	s.out.Warning("cancel requested for %s", b.ID)
	s.printBatch(b)
	return nil
}

func cmdBatchRun(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	store, err := jobstore.Open(cmd.String("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	var job *jobstore.Job
	switch {
	case cmd.String("job") != "":
		job, err = store.GetJob(ctx, cmd.String("job"))
	case cmd.Bool("resume"):
		job, err = store.LatestResumable(ctx)
		if errors.Is(err, jobstore.ErrJobNotFound) {
			return errors.New("no resumable job found")
		}
	}
	if err != nil {
		return err
	}

	// A resumed job keeps its chunk boundaries.
	if job != nil {
		s.cfg.Batch.MaxBatchSize = job.ChunkSize
	} else if n := cmd.Int("chunk-size"); n > 0 {
		s.cfg.Batch.MaxBatchSize = n
	}

	client, err := s.client(batch.WithOnPoll(s.progress))
	if err != nil {
		return err
	}
	requests, err := s.readRequestFile(client, cmd.String("file"))
	if err != nil {
		return err
	}

	if job == nil {
		job, err = store.CreateJob(ctx, s.cfg.Model, len(requests), s.cfg.Batch.MaxBatchSize)
		if err != nil {
			return err
		}
		s.out.Info("started job %s: %d requests in chunks of %d", job.ID, len(requests), job.ChunkSize)
	} else {
		if job.Status != jobstore.JobRunning {
			return fmt.Errorf("job %s is %s", job.ID, job.Status)
		}
		if job.RequestCount != len(requests) {
			return fmt.Errorf("job %s has %d requests, file has %d", job.ID, job.RequestCount, len(requests))
		}
		s.out.Info("resuming job %s", job.ID)
	}

	results, err := client.RunChunked(ctx, requests, store.Recorder(job.ID))
	if err != nil {
		if ctx.Err() != nil {
			s.out.Warning("interrupted; resume with --job %s", job.ID)
			return err
		}
		if ferr := store.FinishJob(context.WithoutCancel(ctx), job.ID, jobstore.JobFailed); ferr != nil {
			s.logger.Error("failed to mark job failed", "job_id", job.ID, "error", ferr)
		}
		return err
	}
	if err := store.FinishJob(ctx, job.ID, jobstore.JobDone); err != nil {
		return err
	}

	s.printSummary(results)
	if err := writeResultsFile(cmd.String("out"), results); err != nil {
		return err
	}
	s.out.Success("job %s done", job.ID)
	return nil
}

func cmdBatchJobs(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	path := cmd.String("db")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.out.Info("no jobs recorded in %s", path)
		return nil
	}
	store, err := jobstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		s.out.Info("no jobs recorded in %s", path)
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID, j.Status, j.Model,
			strconv.Itoa(j.RequestCount), strconv.Itoa(j.ChunkSize),
			j.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	s.out.Table([]string{"Job", "Status", "Model", "Requests", "Chunk", "Updated"}, rows)
	return nil
}

func (s *session) progress(b *claude.Batch) {
	c := b.Progress()
	s.out.Info("%s %s: %d/%d done (%.0f%%)", b.ID, b.Status, c.Done(), c.Total, 100*c.Fraction())
}

func (s *session) printBatch(b *claude.Batch) {
	c := b.RequestCounts
	s.out.Table([]string{"Batch", "Status", "Total", "Processing", "Succeeded", "Errored", "Cancelled", "Expired"},
		[][]string{{
			b.ID, string(b.Status),
			strconv.Itoa(c.Total), strconv.Itoa(c.Processing), strconv.Itoa(c.Succeeded),
			strconv.Itoa(c.Errored), strconv.Itoa(c.Cancelled), strconv.Itoa(c.Expired),
		}})
}

func (s *session) printResults(results []claude.BatchResult) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.CustomID, string(r.Status), truncate(resultDetail(r), 60)})
	}
	s.out.Table([]string{"Custom ID", "Status", "Detail"}, rows)
	s.printSummary(results)
}

func (s *session) printSummary(results []claude.BatchResult) {
	counts := map[claude.ResultStatus]int{}
	var usage claude.Usage
	for _, r := range results {
		counts[r.Status]++
		if r.Response != nil {
			usage.InputTokens += r.Response.Usage.InputTokens
			usage.OutputTokens += r.Response.Usage.OutputTokens
		}
	}
	s.out.Info("%d results: %d succeeded, %d errored, %d cancelled, %d expired, %d failed; %d input / %d output tokens",
		len(results), counts[claude.ResultSucceeded], counts[claude.ResultErrored], counts[claude.ResultCancelled],
		counts[claude.ResultExpired], counts[claude.ResultFailed], usage.InputTokens, usage.OutputTokens)
}

func resultDetail(r claude.BatchResult) string {
	switch {
	case r.Error != nil:
		return r.Error.Error()
	case r.Response != nil:
		return r.Response.Text()
	}
	return ""
}
