package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/canconv/internal/convert"
	"example.com/canconv/internal/csvtab"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "convert":
		convertCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "clean":
		cleanCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`canconv %s (built %s) <command> [options]

Commands:
  convert  --asc <trace.asc> --dbc <comma-separated> [--out <dir>] [--sample-interval 0.1] [--fill-interval 1.0] [--group-size 5] [--encoding utf-8-sig] [--debug] [--progress] [--pdf] [--config <config.yaml>]
  batch    --in <dir> --dbc <comma-separated> [--out-dir <dir>] [--concurrency N] [convert options]
  clean    --dir <dir>
`, version, buildDate)
}

func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file, flags override its values")
	ascPath := fs.String("asc", "", "input .asc trace")
	dbcList := fs.String("dbc", "", "comma-separated .dbc files")
	outDir := fs.String("out", "", "output directory")
	sampleInterval := fs.Float64("sample-interval", 0, "sampling interval in seconds")
	fillInterval := fs.Float64("fill-interval", 0, "gap fill interval in seconds")
	groupSize := fs.Int("group-size", 0, "blank separator cadence in group files")
	encoding := fs.String("encoding", "", "CSV output encoding (utf-8-sig, utf-8, gbk)")
	debug := fs.Bool("debug", false, "log skipped frames and decode errors")
	progressFlag := fs.Bool("progress", false, "display parse progress updates")
	pdfFlag := fs.Bool("pdf", false, "write a PDF conversion report")
	fs.Parse(args)

	var cfg convert.Config
	if *configPath != "" {
		loaded, err := convert.LoadConfig(*configPath)
		if err != nil {
			fmt.Println("load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *ascPath != "" {
		cfg.AscFile = *ascPath
	}
	if *dbcList != "" {
		cfg.DbcFiles = splitList(*dbcList)
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *sampleInterval > 0 {
		cfg.SampleInterval = *sampleInterval
	}
	if *fillInterval > 0 {
		cfg.FillInterval = *fillInterval
	}
	if *groupSize > 0 {
		cfg.GroupSize = *groupSize
	}
	if *encoding != "" {
		cfg.CsvEncoding = *encoding
	}
	if *debug {
		cfg.Debug = true
	}
	cfg.ApplyDefaults()
	if cfg.AscFile == "" {
		fmt.Println("required: --asc")
		os.Exit(1)
	}
	if len(cfg.DbcFiles) == 0 {
		fmt.Println("required: --dbc")
		os.Exit(1)
	}

	res, err := runOne(cfg, *progressFlag, *pdfFlag)
	if err != nil {
		fmt.Println("convert:", err)
		os.Exit(1)
	}
	printResult(cfg, res)
}

func runOne(cfg convert.Config, progress, pdf bool) (*convert.Result, error) {
	conv := convert.NewConverter(cfg)
	if progress {
		conv.ProgressWriter = os.Stderr
	}
	res, err := conv.Run()
	if err != nil {
		return nil, err
	}
	if pdf {
		path, err := conv.SaveReport(res)
		if err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		res.Files = append(res.Files, path)
	}
	return res, nil
}

func printResult(cfg convert.Config, res *convert.Result) {
	fmt.Printf("wrote %d files to %s\n", len(res.Files), cfg.OutputDir)
	fmt.Printf("frames decoded: %d, slots: %d, signals: %d, elapsed: %s\n",
		res.OriginalCount, res.SlotCount, res.SignalCount, res.Elapsed.Round(time.Millisecond))
	names := make([]string, 0, len(res.Groups))
	for name := range res.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %d signals\n", name, res.Groups[name])
	}
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", "", "directory of .asc traces")
	dbcList := fs.String("dbc", "", "comma-separated .dbc files")
	outDir := fs.String("out-dir", "", "root output directory, one subdirectory per trace")
	sampleInterval := fs.Float64("sample-interval", convert.DefaultSampleInterval, "sampling interval in seconds")
	fillInterval := fs.Float64("fill-interval", convert.DefaultFillInterval, "gap fill interval in seconds")
	groupSize := fs.Int("group-size", convert.DefaultGroupSize, "blank separator cadence in group files")
	encoding := fs.String("encoding", convert.DefaultEncoding, "CSV output encoding")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent conversions")
	pdfFlag := fs.Bool("pdf", false, "write a PDF conversion report per trace")
	fs.Parse(args)

	if *inDir == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	if *dbcList == "" {
		fmt.Println("required: --dbc")
		os.Exit(1)
	}
	traces, err := filepath.Glob(filepath.Join(*inDir, "*.asc"))
	if err != nil {
		fmt.Println("scan input dir:", err)
		os.Exit(1)
	}
	if len(traces) == 0 {
		fmt.Println("no .asc files in", *inDir)
		os.Exit(1)
	}
	sort.Strings(traces)
	root := *outDir
	if root == "" {
		root = *inDir
	}

	var g errgroup.Group
	g.SetLimit(*concurrency)
	for _, trace := range traces {
		trace := trace
		g.Go(func() error {
			base := strings.TrimSuffix(filepath.Base(trace), filepath.Ext(trace))
			cfg := convert.Config{
				AscFile:        trace,
				DbcFiles:       splitList(*dbcList),
				OutputDir:      filepath.Join(root, base+"_csv"),
				SampleInterval: *sampleInterval,
				FillInterval:   *fillInterval,
				GroupSize:      *groupSize,
				CsvEncoding:    *encoding,
			}
			res, err := runOne(cfg, false, *pdfFlag)
			if err != nil {
				return fmt.Errorf("%s: %w", trace, err)
			}
			fmt.Printf("%s: %d frames, %d slots, %d signals\n",
				filepath.Base(trace), res.OriginalCount, res.SlotCount, res.SignalCount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Println("batch:", err)
		os.Exit(1)
	}
}

func cleanCmd(args []string) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of CSV files to clean")
	fs.Parse(args)

	if *dir == "" {
		fmt.Println("required: --dir")
		os.Exit(1)
	}
	results, err := csvtab.CleanDirectory(*dir)
	if err != nil {
		fmt.Println("clean:", err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tROWS\tREMOVED\tSTATUS")
	failed := false
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
			failed = true
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", filepath.Base(res.File), res.OriginalRows, res.RemovedRows, status)
	}
	tw.Flush()
	if failed {
		os.Exit(1)
	}
}

func splitList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
