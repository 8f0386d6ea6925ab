// Package validate runs a single validation from the command line and writes
// the mismatch table to a CSV file.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/north-identity/reconvalidator/cmd/common"
	"github.com/north-identity/reconvalidator/internal/auth"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/recon"
)

type flags struct {
	tenantURL     string
	clientID      string
	clientSecret  string
	tokenEndpoint string
	scopes        string

	concurrency int
	pageSize    int
	maxRecords  int

	resumeCursor string
	output       string
}

// Command returns the validate subcommand.
func Command(opts *common.Options) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run one reconciliation validation and write the mismatch CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, &f)
		},
	}

	cmd.Flags().StringVar(&f.tenantURL, "tenant-url", "", "directory tenant base URL")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth client secret")
	cmd.Flags().StringVar(&f.tokenEndpoint, "token-endpoint", "", "OAuth token endpoint")
	cmd.Flags().StringVar(&f.scopes, "scopes", "fr:idm:*", "OAuth scopes")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "fallback lookup concurrency (default from config)")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "directory page size (default from config)")
	cmd.Flags().IntVar(&f.maxRecords, "max-records", 0, "stop after this many records (0 = all)")
	cmd.Flags().StringVar(&f.resumeCursor, "resume-cursor", "", "checkpoint cursor to resume from")
	cmd.Flags().StringVar(&f.output, "output", "", "output CSV path (default recon-validation-<jobId>.csv)")

	for _, name := range []string{"tenant-url", "client-id", "client-secret", "token-endpoint"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func run(ctx context.Context, opts *common.Options, f *flags) error {
	deps, err := common.Build(*opts)
	if err != nil {
		return err
	}
	log := deps.Logger
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := recon.RunConfig{
		TenantURL: f.tenantURL,
		Credentials: auth.Credentials{
			TokenEndpoint: f.tokenEndpoint,
			ClientID:      f.clientID,
			ClientSecret:  f.clientSecret,
			Scopes:        f.scopes,
		},
		Concurrency:  f.concurrency,
		PageSize:     f.pageSize,
		MaxRecords:   f.maxRecords,
		ResumeCursor: f.resumeCursor,
		SampleRatio:  deps.Config.Validation.SampleRatio,
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = deps.Config.Validation.Concurrency
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = deps.Config.Validation.PageSize
	}

	var jobID string
	failed := false
	for event := range deps.Orchestrator.Run(ctx, cfg) {
		switch event.Type {
		case recon.EventTypeProgress:
			data := event.Data.(recon.ProgressData)
			log.Info("progress",
				logger.Int("processed", data.TotalProcessed),
				logger.Int("matches", data.Matches),
				logger.Int("mismatches", data.Mismatches),
				logger.Int("errors", data.Errors),
				logger.Int("rate", data.Rate),
			)
		case recon.EventTypeMismatch:
			m := event.Data.(recon.Mismatch)
			log.Warn("mismatch",
				logger.String("record", m.DirectoryRecordID),
				logger.String("kind", string(m.Kind)),
				logger.String("source", m.SourceValue),
				logger.String("target", m.TargetValue),
			)
		case recon.EventTypeCheckpoint:
			cp := event.Data.(recon.Checkpoint)
			log.Info("checkpoint", logger.String("cursor", cp.Cursor))
		case recon.EventTypeComplete:
			data := event.Data.(recon.CompleteData)
			jobID = data.JobID
			log.Info("run complete",
				logger.String("job_id", data.JobID),
				logger.Int("processed", data.Summary.TotalProcessed),
				logger.Int("mismatches", data.Summary.Mismatches),
				logger.Int("errors", data.Summary.Errors),
			)
		case recon.EventTypeError:
			data := event.Data.(recon.ErrorData)
			log.Error("run error",
				logger.String("message", data.Message),
				logger.String("details", data.Details),
			)
			failed = true
		}
	}

	if jobID != "" {
		art, ok := deps.Store.Get(jobID)
		if !ok {
			return fmt.Errorf("artifact for job %s missing", jobID)
		}
		path := f.output
		if path == "" {
			path = fmt.Sprintf("recon-validation-%s.csv", jobID)
		}
		if writeErr := os.WriteFile(path, []byte(art.Content), 0o600); writeErr != nil {
			return fmt.Errorf("write csv: %w", writeErr)
		}
		log.Info("csv written", logger.String("path", path))
	}

	if failed {
		return errors.New("validation run did not complete")
	}
	return nil
}
