// Command ena-dl resolves ENA accessions and downloads their read
// files, preferring the accelerated fasp client when available and
// falling back to resumable HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/thanhleviet/ena-dl/internal/archive"
	"github.com/thanhleviet/ena-dl/internal/config"
	"github.com/thanhleviet/ena-dl/internal/ena"
	enahttp "github.com/thanhleviet/ena-dl/internal/http"
	"github.com/thanhleviet/ena-dl/internal/merge"
	"github.com/thanhleviet/ena-dl/internal/orchestrator"
	"github.com/thanhleviet/ena-dl/internal/progress"
	"github.com/thanhleviet/ena-dl/internal/transfer"
)

// Exit codes
const (
	ExitSuccess             = 0
	ExitTransferFailed      = 1
	ExitInvalidArgs         = 2
	ExitResolverUnreachable = 3
	ExitStorageError        = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ena-dl", flag.ContinueOnError)

	mode := fs.String("mode", "", "Transfer mode: auto, http or accelerated")
	outputDir := fs.String("output-dir", "", "Directory to write downloads to")
	workers := fs.Int("workers", 0, "Number of parallel transfers")
	configPath := fs.String("config", "", "Path to YAML config file")
	kind := fs.String("kind", "", "Force accession kind: run, experiment, sample or study")
	groupBy := fs.String("group-by", "", "Merge runs by accession: experiment or sample")
	bucket := fs.String("bucket", "", "Mirror verified files to this bucket URL (s3://, gs://, file://)")
	quiet := fs.Bool("quiet", false, "Do not print current status")
	dryRun := fs.Bool("dry-run", false, "Resolve and print what would be downloaded, then exit")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ena-dl [options] ACCESSION...

Resolve ENA accessions (run, experiment, sample or study) and download
their read files. Interrupted transfers resume on rerun; already
verified files are skipped.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one accession is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		Mode:      *mode,
		OutputDir: *outputDir,
		Workers:   *workers,
		GroupBy:   *groupBy,
		Bucket:    *bucket,
		Quiet:     *quiet,
		DryRun:    *dryRun,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	accessions, err := parseAccessions(fs.Args(), *kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[ena-dl] Received interrupt, shutting down...")
		cancel()
	}()

	return download(ctx, cfg, accessions)
}

func download(ctx context.Context, cfg config.Config, accessions []ena.Accession) int {
	logf := func(format string, args ...any) {
		if !cfg.Quiet {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}

	httpOpts := enahttp.DefaultOptions()
	resolver := ena.NewResolver(ena.Options{
		// Overridable for tests and local ENA mirrors.
		BaseURL: os.Getenv("ENADL_ENA_URL"),
		HTTP:    httpOpts,
	})

	logf("[ena-dl] Resolving %d accession(s)...", len(accessions))
	results := resolver.Resolve(ctx, accessions)

	if ena.Unreachable(results) {
		fmt.Fprintln(os.Stderr, "Error: ENA metadata service unreachable")
		return ExitResolverUnreachable
	}

	entries, totalSize := collectEntries(results)
	logf("[ena-dl] Total files to download: %d (%s)", len(entries), progress.FormatBytes(totalSize))

	if cfg.DryRun {
		for _, e := range entries {
			fmt.Printf("%s\t%s\t%d\t%s\n", e.Run, e.Name, e.Size, e.HTTPURL)
		}
		return ExitSuccess
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitStorageError
	}

	mode, err := transfer.ParseMode(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	var reporter *progress.Reporter
	if !cfg.Quiet && len(entries) > 0 {
		reporter = progress.NewReporter(progress.Options{
			TotalSize:  totalSize,
			TotalFiles: len(entries),
			Workers:    cfg.Workers,
		})
		reporter.Start()
	}

	orch := orchestrator.New(orchestrator.Options{
		Mode:      mode,
		OutputDir: cfg.OutputDir,
		Workers:   cfg.Workers,
		Retry:     cfg.Retry,
		HTTP:      transfer.NewHTTPAdapter(httpOpts),
		Aspera:    transfer.NewAscpAdapter(cfg.Aspera),
		Progress:  reporter,
		Logf:      logf,
	})

	report := orch.Run(ctx, results)
	if reporter != nil {
		reporter.Stop()
	}

	if !cfg.Quiet {
		if err := report.RenderTable(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	infoPath := filepath.Join(cfg.OutputDir, "ena-run-info.json")
	if err := report.WriteRunInfo(infoPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing run info: %v\n", err)
		return ExitStorageError
	}

	finalPaths, code := finalize(ctx, cfg, report, entries, logf)
	if code != ExitSuccess {
		return code
	}

	if cfg.Bucket != "" && len(finalPaths) > 0 {
		logf("[ena-dl] Mirroring %d file(s) to %s", len(finalPaths), cfg.Bucket)
		if err := archive.Mirror(ctx, cfg.Bucket, finalPaths); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitStorageError
		}
	}

	if !report.OK() {
		return ExitTransferFailed
	}
	return ExitSuccess
}

// finalize optionally merges grouped runs and returns the run's final
// data file paths.
func finalize(ctx context.Context, cfg config.Config, report *orchestrator.Report, entries []ena.FileEntry, logf func(string, ...any)) ([]string, int) {
	byKey := make(map[string]ena.FileEntry, len(entries))
	for _, e := range entries {
		byKey[e.Run+"/"+e.Name] = e
	}

	var doneEntries []ena.FileEntry
	var donePaths []string
	for _, o := range report.DoneOutcomes() {
		entry, ok := byKey[o.Accession+"/"+o.Name]
		if !ok {
			continue
		}
		doneEntries = append(doneEntries, entry)
		donePaths = append(donePaths, filepath.Join(cfg.OutputDir, entry.Name))
	}

	if cfg.GroupBy == "" || len(doneEntries) == 0 {
		return donePaths, ExitSuccess
	}

	by, err := merge.ParseGroupBy(cfg.GroupBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, ExitInvalidArgs
	}

	groups := merge.Plan(doneEntries, donePaths, by)
	logf("[ena-dl] Merging runs into %d group(s)", len(groups))
	if err := merge.Execute(groups, cfg.OutputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, ExitStorageError
	}
	if err := merge.WriteMergers(groups, filepath.Join(cfg.OutputDir, "ena-run-mergers.json")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, ExitStorageError
	}

	var merged []string
	for name, g := range groups {
		if len(g.R1) > 0 && len(g.R2) > 0 {
			merged = append(merged,
				filepath.Join(cfg.OutputDir, name+"_R1.fastq.gz"),
				filepath.Join(cfg.OutputDir, name+"_R2.fastq.gz"))
		} else if len(g.R1) > 0 {
			merged = append(merged, filepath.Join(cfg.OutputDir, name+".fastq.gz"))
		}
	}
	return merged, ExitSuccess
}

func parseAccessions(ids []string, kindOverride string) ([]ena.Accession, error) {
	var kind ena.Kind
	if kindOverride != "" {
		switch ena.Kind(kindOverride) {
		case ena.KindRun, ena.KindExperiment, ena.KindSample, ena.KindStudy:
			kind = ena.Kind(kindOverride)
		default:
			return nil, fmt.Errorf("unknown accession kind %q", kindOverride)
		}
	}

	accessions := make([]ena.Accession, 0, len(ids))
	for _, id := range ids {
		var acc ena.Accession
		var err error
		if kind != "" {
			acc, err = ena.ParseAccessionAs(id, kind)
		} else {
			acc, err = ena.ParseAccession(id)
		}
		if err != nil {
			return nil, err
		}
		accessions = append(accessions, acc)
	}
	return accessions, nil
}

func collectEntries(results []ena.Result) ([]ena.FileEntry, int64) {
	var entries []ena.FileEntry
	var total int64
	seen := make(map[string]bool)
	for _, res := range results {
		for _, e := range res.Entries {
			key := e.Run + "/" + e.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
			total += e.Size
		}
	}
	return entries, total
}
