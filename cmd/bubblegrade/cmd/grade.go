package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bubblegrade/internal/config"
	"github.com/MeKo-Tech/bubblegrade/internal/fields"
	"github.com/MeKo-Tech/bubblegrade/internal/grading"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr/tesseract"
	"github.com/MeKo-Tech/bubblegrade/internal/omr"
	"github.com/MeKo-Tech/bubblegrade/internal/pipeline"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/store"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// gradeCmd grades one or more sheet photographs through the full pipeline.
var gradeCmd = &cobra.Command{
	Use:   "grade [files...]",
	Short: "Grade exam sheet photographs",
	Long: `Grade runs each photograph through the full pipeline: enhancement,
layout detection, bubble grading, and extraction of the name and CURP
fields. Results are printed per file, including the review flags and
the final status. Directory arguments are expanded to the image and
PDF files they contain.

Examples:
  bubblegrade grade sheet.jpg
  bubblegrade grade scans/ --workers 4
  bubblegrade grade sheet.jpg --answer-key A,C,B,D
  bubblegrade grade sheet.jpg --backend remote --omr-url http://omr:8080 --ocr-url http://ocr:8080
  bubblegrade grade sheet.jpg --format json --output results.json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runGrade,
}

// gradeRecord pairs an input file with its scan result or failure.
type gradeRecord struct {
	File  string       `json:"file"`
	Scan  *scan.Result `json:"scan,omitempty"`
	Error string       `json:"error,omitempty"`

	err error
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	files, err := expandInputs(args)
	if err != nil {
		return err
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// The CLI serves no metrics endpoint; a fresh registry avoids
	// duplicate registration across in-process runs.
	controller, err := pipeline.NewBuilder().
		WithConfig(cfg.Pipeline).
		WithBackend(backend).
		WithStore(st).
		WithMetricsRegistry(prometheus.NewRegistry()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	records := gradeAll(ctx, controller, files, cfg.Output.Workers)

	output, err := formatRecords(records, cfg.Output.Format)
	if err != nil {
		return err
	}

	if cfg.Output.File != "" {
		if err := os.WriteFile(cfg.Output.File, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", cfg.Output.File)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), output)
	}

	failed := 0
	for _, rec := range records {
		if rec.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(records))
	}
	return nil
}

// expandInputs resolves directory arguments to the sheet files they
// contain. Plain paths pass through untouched so a missing file is
// reported against its own record rather than aborting the run.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			files = append(files, arg)
			continue
		}

		found, err := discoverSheets(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no gradeable files found in %s", strings.Join(args, ", "))
	}
	return files, nil
}

// discoverSheets lists the supported image and PDF files directly
// inside dir, sorted by name.
func discoverSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if utils.IsSupportedImage(path) || utils.IsPDF(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// gradeAll processes the files concurrently, bounded by workers, and
// returns one record per input in the original order.
func gradeAll(ctx context.Context, controller *pipeline.Controller, files []string, workers int) []gradeRecord {
	if workers < 1 {
		workers = 1
	}

	records := make([]gradeRecord, len(files))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = gradeFile(ctx, controller, file)
		}(i, file)
	}
	wg.Wait()

	return records
}

func gradeFile(ctx context.Context, controller *pipeline.Controller, path string) gradeRecord {
	rec := gradeRecord{File: path}

	data, err := os.ReadFile(path) //nolint:gosec // user-supplied input path
	if err != nil {
		rec.err = err
		rec.Error = err.Error()
		return rec
	}

	result, err := controller.Process(ctx, data, filepath.Base(path))
	// A failed scan still carries its record with status FAILED.
	rec.Scan = result
	if err != nil {
		rec.err = err
		rec.Error = err.Error()
	}
	return rec
}

func formatRecords(records []gradeRecord, format string) (string, error) {
	if format == config.FormatJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal results: %w", err)
		}
		return string(data) + "\n", nil
	}

	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(formatRecordText(rec))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func formatRecordText(rec gradeRecord) string {
	if rec.Scan == nil {
		return fmt.Sprintf("%s: ERROR %s", rec.File, rec.Error)
	}

	s := rec.Scan
	if s.OMR == nil || s.Nombre == nil || s.CURP == nil {
		msg := s.ErrorMessage
		if msg == "" {
			msg = rec.Error
		}
		return fmt.Sprintf("%s: %s %s", rec.File, s.Status, msg)
	}

	line := fmt.Sprintf("%s: %s score %d/%d nombre %q (%.2f%s) curp %q (%.2f%s)",
		rec.File, s.Status,
		s.OMR.Score, s.OMR.Total,
		s.Nombre.Text, s.Nombre.Confidence, reviewSuffix(s.Nombre.NeedsReview),
		s.CURP.Text, s.CURP.Confidence, reviewSuffix(s.CURP.NeedsReview))
	if s.ErrorMessage != "" {
		line += " error: " + s.ErrorMessage
	}
	return line
}

func reviewSuffix(needsReview bool) string {
	if needsReview {
		return ", review"
	}
	return ""
}

// buildBackend constructs the grading backend selected by the configuration.
func buildBackend(cfg *config.Config) (grading.Backend, error) {
	switch cfg.Backend.Mode {
	case config.BackendLocal:
		grader, err := omr.NewGrader(cfg.OMR)
		if err != nil {
			return nil, fmt.Errorf("failed to create OMR grader: %w", err)
		}
		engine, err := tesseract.NewEngine(cfg.OCR)
		if err != nil {
			return nil, fmt.Errorf("failed to create OCR engine: %w", err)
		}
		extractor, err := fields.NewExtractor(engine)
		if err != nil {
			return nil, fmt.Errorf("failed to create field extractor: %w", err)
		}
		local, err := grading.NewLocal(grader, extractor)
		if err != nil {
			return nil, fmt.Errorf("failed to create local backend: %w", err)
		}
		return local, nil
	case config.BackendRemote:
		remote, err := grading.NewRemote(cfg.Backend.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to create remote backend: %w", err)
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown backend mode: %s", cfg.Backend.Mode)
	}
}

// buildStore constructs the scan store selected by the configuration
// along with a cleanup function.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil
	case config.StorePostgres:
		pg, err := store.NewPostgres(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func addGradeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("workers", 2, "number of concurrent scans")
	cmd.Flags().String("backend", "local", "grading backend (local, remote)")
	cmd.Flags().String("omr-url", "", "remote OMR service URL")
	cmd.Flags().String("ocr-url", "", "remote OCR service URL")
	cmd.Flags().StringSlice("answer-key", nil, "answer key letters, e.g. A,C,B,D (default: count marks)")
	cmd.Flags().String("store", "memory", "scan store (memory, postgres)")
	cmd.Flags().String("database-url", "", "postgres connection URL")
}

func bindGradeFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.workers", "workers"},
		{"backend.mode", "backend"},
		{"backend.remote.omr_url", "omr-url"},
		{"backend.remote.ocr_url", "ocr-url"},
		{"omr.answer_key", "answer-key"},
		{"store.backend", "store"},
		{"store.postgres.url", "database-url"},
	}

	for _, binding := range flagBindings {
		mustBindPFlag(binding.key, cmd.Flags().Lookup(binding.flag))
	}
}

// GetGradeCommand returns the grade command for testing purposes.
func GetGradeCommand() *cobra.Command {
	return gradeCmd
}

func init() {
	rootCmd.AddCommand(gradeCmd)
	addGradeFlags(gradeCmd)
	bindGradeFlags(gradeCmd)
}
