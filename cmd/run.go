package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/codebook-cli/internal/cache"
	"github.com/sells-group/codebook-cli/internal/export"
	"github.com/sells-group/codebook-cli/internal/model"
	"github.com/sells-group/codebook-cli/internal/pipeline"
	"github.com/sells-group/codebook-cli/internal/prompt"
	"github.com/sells-group/codebook-cli/internal/source"
	anthropicpkg "github.com/sells-group/codebook-cli/pkg/anthropic"
	"github.com/sells-group/codebook-cli/pkg/drive"
)

var (
	runSourceKind string
	runDir        string
	runFTPURL     string
	runFolderID   string
	runOut        string
	runWorkers    int
	runKeepGoing  bool
	runPromptFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Code every document in the source and write the codebook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyRunFlags(cmd)

		if err := cfg.Validate(); err != nil {
			return err
		}

		preset, err := buildPreset()
		if err != nil {
			return err
		}

		src, err := buildSource()
		if err != nil {
			return err
		}

		docs, err := src.List(ctx)
		if err != nil {
			return eris.Wrap(err, "list documents")
		}
		if len(docs) == 0 {
			fmt.Println("no .docx documents found in source")
			return nil
		}

		opts := []pipeline.AnalyzerOption{}
		if cfg.Anthropic.RateLimit > 0 {
			opts = append(opts, pipeline.WithRateLimit(cfg.Anthropic.RateLimit))
		}
		if cfg.Cache.Path != "" {
			store, cacheErr := cache.Open(cfg.Cache.Path)
			if cacheErr != nil {
				return eris.Wrap(cacheErr, "open response cache")
			}
			defer store.Close() //nolint:errcheck
			opts = append(opts, pipeline.WithCache(store))
		}

		analyzer := pipeline.NewAnalyzer(anthropicpkg.NewClient(cfg.Anthropic.Key), preset, opts...)
		p := pipeline.New(analyzer, pipeline.Options{
			Workers:   cfg.Pipeline.Workers,
			KeepGoing: cfg.Pipeline.KeepGoing,
		})

		cb, report, err := p.Run(ctx, docs)
		if report != nil {
			printSummary(report)
		}
		if err != nil {
			var malformed *pipeline.MalformedResponseError
			if errors.As(err, &malformed) {
				fmt.Fprintln(os.Stderr, "unparseable analysis response, raw content follows:")
				fmt.Fprintln(os.Stderr, malformed.Raw)
			}
			return eris.Wrap(err, "pipeline run")
		}

		return finishRun(cb, report)
	},
}

// finishRun writes the artifact and turns the report into the exit status.
// A keep-going run with failures exits nonzero even when nothing could be
// written.
func finishRun(cb *model.Codebook, report *pipeline.Report) error {
	failed := report.Failed()

	if cb.Len() == 0 {
		fmt.Println("no tables produced, nothing written")
		if len(failed) > 0 {
			return eris.Errorf("%d document(s) failed, nothing written", len(failed))
		}
		return nil
	}

	if err := export.WriteCodebook(cfg.Output.Path, cb); err != nil {
		return err
	}
	fmt.Printf("codebook written: %s (%d sheets)\n", cfg.Output.Path, cb.Len())

	if len(failed) > 0 {
		return eris.Errorf("%d document(s) failed, codebook is partial", len(failed))
	}
	return nil
}

// applyRunFlags folds explicitly-set flags over the loaded config so flags
// win over file and environment.
func applyRunFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("source") {
		cfg.Source.Kind = runSourceKind
	}
	if cmd.Flags().Changed("dir") {
		cfg.Source.Dir = runDir
	}
	if cmd.Flags().Changed("ftp-url") {
		cfg.Source.FTPURL = runFTPURL
	}
	if cmd.Flags().Changed("folder") {
		cfg.Drive.FolderID = runFolderID
	}
	if cmd.Flags().Changed("out") {
		cfg.Output.Path = runOut
	}
	if cmd.Flags().Changed("workers") {
		cfg.Pipeline.Workers = runWorkers
	}
	if cmd.Flags().Changed("keep-going") {
		cfg.Pipeline.KeepGoing = runKeepGoing
	}
	if cmd.Flags().Changed("prompt-file") {
		cfg.Pipeline.PromptFile = runPromptFile
	}
}

// buildPreset resolves the analysis prompt: built-in default, model from
// config, optional overrides from a preset file.
func buildPreset() (prompt.Preset, error) {
	base := prompt.Default()
	if cfg.Anthropic.Model != "" {
		base.Model = cfg.Anthropic.Model
	}

	if cfg.Pipeline.PromptFile == "" {
		return base, nil
	}
	return prompt.Load(cfg.Pipeline.PromptFile, base)
}

func buildSource() (source.Source, error) {
	switch cfg.Source.Kind {
	case "drive":
		client := drive.NewClient(cfg.Drive.Token)
		return source.NewDrive(client, cfg.Drive.FolderID), nil
	case "local":
		return source.NewLocal(cfg.Source.Dir), nil
	case "ftp":
		return source.NewFTP(cfg.Source.FTPURL), nil
	default:
		return nil, eris.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func printSummary(report *pipeline.Report) {
	for _, d := range report.Documents {
		switch {
		case d.Skipped:
			fmt.Printf("  %s: skipped (empty or unreadable)\n", d.Name)
		case d.Err != nil:
			fmt.Printf("  %s: failed: %v\n", d.Name, d.Err)
		default:
			fmt.Printf("  %s: %d rows -> sheet %q\n", d.Name, d.Rows, d.SheetID)
		}
	}
	zap.L().Info("run summary",
		zap.String("run_id", report.RunID),
		zap.Int("documents", len(report.Documents)),
		zap.Int("failed", len(report.Failed())),
	)
}

func init() {
	runCmd.Flags().StringVar(&runSourceKind, "source", "", "document source kind: drive, local, or ftp")
	runCmd.Flags().StringVar(&runDir, "dir", "", "directory of .docx files (local source)")
	runCmd.Flags().StringVar(&runFTPURL, "ftp-url", "", "ftp://host/dir of .docx files (ftp source)")
	runCmd.Flags().StringVar(&runFolderID, "folder", "", "Google Drive folder ID (drive source)")
	runCmd.Flags().StringVar(&runOut, "out", "", "output xlsx path")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent document analyses")
	runCmd.Flags().BoolVar(&runKeepGoing, "keep-going", false, "continue past malformed responses and write a partial codebook")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "YAML preset overriding the analysis prompt")
	rootCmd.AddCommand(runCmd)
}
