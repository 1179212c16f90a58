package convert

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"example.com/canconv/internal/asc"
	"example.com/canconv/internal/common"
	"example.com/canconv/internal/csvtab"
	"example.com/canconv/internal/dbc"
	"example.com/canconv/internal/manifest"
	"example.com/canconv/internal/report"
)

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("conversion already in progress")

// Result summarizes a completed conversion.
type Result struct {
	OriginalCount  int
	SlotCount      int
	SignalCount    int
	Groups         map[string]int
	Files          []string
	ManifestPath   string
	ManifestDigest string
	Elapsed        time.Duration
}

// Converter runs one conversion at a time over a fixed config.
type Converter struct {
	cfg Config

	mu   sync.Mutex
	busy bool

	// Progress, when set, is called periodically with the completion
	// fraction (0..1) and the number of lines read so far, and once more
	// when parsing finishes.
	Progress func(fraction float64, lines int64)

	// ProgressWriter, when set, gets a rewritten progress line during the
	// parse phase.
	ProgressWriter io.Writer
}

func NewConverter(cfg Config) *Converter {
	cfg.ApplyDefaults()
	return &Converter{cfg: cfg}
}

func (c *Converter) Config() Config { return c.cfg }

// Busy reports whether a run is currently in flight.
func (c *Converter) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Converter) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Converter) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Run executes the full pipeline: load the signal catalog, sample the trace,
// aggregate, group, fill gaps, write the CSV set and the manifest.
func (c *Converter) Run() (*Result, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	start := time.Now()
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := dbc.LoadCatalog(c.cfg.DbcFiles)
	if err != nil {
		return nil, err
	}
	common.Logf("catalog loaded: %d messages, %d signals", catalog.MessageCount(), catalog.SignalCount())

	sampler := asc.NewSampler(catalog, c.cfg.SampleInterval, c.cfg.Debug)
	defer sampler.Release()

	metrics := common.NewMetrics()
	if info, err := os.Stat(c.cfg.AscFile); err == nil {
		metrics.SetTotalBytes(info.Size())
	}
	sampler.SetMetrics(metrics)
	metrics.Start()
	stopProgress := c.startProgress(metrics)

	err = sampler.ParseFile(c.cfg.AscFile)
	stopProgress()
	metrics.Stop()
	if err != nil {
		return nil, err
	}

	table := asc.Aggregate(sampler.Sampled())
	groups := asc.Classify(sampler.FoundSignals())
	slots := table.Slots()
	filled := asc.FillGaps(table, slots, groups.AllSignals(), c.cfg.SampleInterval, c.cfg.FillInterval)

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stats := csvtab.Stats{
		OriginalCount: sampler.OriginalCount(),
		SlotCount:     len(slots),
		SignalCount:   len(groups.AllSignals()),
	}
	writer := &csvtab.Writer{
		OutputDir: c.cfg.OutputDir,
		Encoding:  c.cfg.CsvEncoding,
		GroupSize: c.cfg.GroupSize,
	}
	files, err := writer.WriteAll(csvtab.Input{
		Groups:         groups,
		Slots:          slots,
		SampleInterval: c.cfg.SampleInterval,
		Values:         filled,
		Units:          catalog.Unit,
		Stats:          stats,
	})
	if err != nil {
		return nil, err
	}

	m, err := manifest.Build(files)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}
	manifestPath := filepath.Join(c.cfg.OutputDir, "manifest.json")
	if err := manifest.Save(m, manifestPath); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	res := &Result{
		OriginalCount:  stats.OriginalCount,
		SlotCount:      stats.SlotCount,
		SignalCount:    stats.SignalCount,
		Groups:         make(map[string]int, len(groups.Order)),
		Files:          files,
		ManifestPath:   manifestPath,
		ManifestDigest: m.Digest(),
		Elapsed:        time.Since(start),
	}
	for _, name := range groups.Order {
		res.Groups[name] = len(groups.Members[name])
	}
	common.Logf("conversion finished: %d frames, %d slots, %d signals in %s",
		res.OriginalCount, res.SlotCount, res.SignalCount, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// SaveReport renders the PDF report for a finished run next to the CSVs.
func (c *Converter) SaveReport(res *Result) (string, error) {
	data := report.Data{
		SourceFile:     c.cfg.AscFile,
		GeneratedAt:    time.Now().UTC(),
		OriginalCount:  res.OriginalCount,
		SlotCount:      res.SlotCount,
		SignalCount:    res.SignalCount,
		SampleInterval: c.cfg.SampleInterval,
		FillInterval:   c.cfg.FillInterval,
		Files:          res.Files,
		ManifestDigest: res.ManifestDigest,
	}
	for _, name := range groupOrder(res.Groups) {
		data.Groups = append(data.Groups, report.GroupRow{Name: name, Signals: res.Groups[name]})
	}
	out := filepath.Join(c.cfg.OutputDir, "Conversion_Report.pdf")
	if err := report.SaveConversionPDF(data, out); err != nil {
		return "", err
	}
	return out, nil
}

func groupOrder(groups map[string]int) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	asc.SortGroupNames(names)
	return names
}

func (c *Converter) startProgress(m *common.Metrics) func() {
	stopPrinter := func() {}
	if c.ProgressWriter != nil {
		stopPrinter = common.StartProgressPrinter(c.ProgressWriter, m, 500*time.Millisecond)
	}
	if c.Progress == nil {
		return stopPrinter
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				snap := m.Snapshot()
				c.Progress(snap.Completion(), snap.Lines)
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(done)
			stopPrinter()
			snap := m.Snapshot()
			c.Progress(snap.Completion(), snap.Lines)
		})
	}
}
