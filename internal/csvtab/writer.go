package csvtab

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"example.com/canconv/internal/asc"
	"example.com/canconv/internal/dbc"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Stats carries the run counters shown in the summary table.
type Stats struct {
	OriginalCount int
	SlotCount     int
	SignalCount   int
}

// Input bundles everything the writer needs: the group classification, the
// ordered slot list, the filled value table and the unit lookup.
type Input struct {
	Groups         asc.Groups
	Slots          []asc.Slot
	SampleInterval float64
	Values         asc.Table
	Units          func(dbc.SignalKey) string
	Stats          Stats
}

// Writer renders the grouped tables into CSV files.
type Writer struct {
	OutputDir string
	Encoding  string // utf-8-sig, utf-8, gbk
	GroupSize int    // blank separator row cadence in group files; <=0 disables
}

// WriteAll emits one CSV per group plus Summary.csv and All_Signals.csv,
// returning the created file paths in write order.
func (w *Writer) WriteAll(in Input) ([]string, error) {
	var created []string
	for _, group := range in.Groups.Order {
		path, err := w.writeGroupFile(group, in.Groups.Members[group], in)
		if err != nil {
			return created, err
		}
		created = append(created, path)
	}
	summary, err := w.writeSummaryFile(in)
	if err != nil {
		return created, err
	}
	created = append(created, summary)
	all, err := w.writeAllSignalsFile(in)
	if err != nil {
		return created, err
	}
	created = append(created, all)
	return created, nil
}

func (w *Writer) writeGroupFile(group string, signals []dbc.SignalKey, in Input) (string, error) {
	path := filepath.Join(w.OutputDir, group+".csv")
	cw, done, err := w.create(path)
	if err != nil {
		return "", err
	}
	if err := cw.Write(header(signals, in.Units)); err != nil {
		done()
		return "", err
	}
	rowCount := 0
	for _, slot := range in.Slots {
		if err := cw.Write(row(slot, signals, in)); err != nil {
			done()
			return "", err
		}
		rowCount++
		if w.GroupSize > 0 && rowCount >= w.GroupSize {
			// Blank line so spreadsheet tools show the cadence visually.
			if err := cw.Write([]string{""}); err != nil {
				done()
				return "", err
			}
			rowCount = 0
		}
	}
	if err := done(); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeSummaryFile(in Input) (string, error) {
	path := filepath.Join(w.OutputDir, "Summary.csv")
	cw, done, err := w.create(path)
	if err != nil {
		return "", err
	}
	rows := [][]string{
		{"Conversion Summary"},
		{},
		{"Grouping rule", "BatP<number> name pattern"},
		{"Example", "BatP3_BMS_xxx -> group BatP3"},
		{},
		{"Statistics"},
		{"Original data points", strconv.Itoa(in.Stats.OriginalCount)},
		{"Sampled time slots", strconv.Itoa(in.Stats.SlotCount)},
		{"Signals", strconv.Itoa(in.Stats.SignalCount)},
		{"Groups", strconv.Itoa(len(in.Groups.Order))},
		{},
		{"Group details"},
		{"Group", "Signals", "File"},
	}
	for _, group := range in.Groups.Order {
		rows = append(rows, []string{
			group,
			strconv.Itoa(len(in.Groups.Members[group])),
			group + ".csv",
		})
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			done()
			return "", err
		}
	}
	if err := done(); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Writer) writeAllSignalsFile(in Input) (string, error) {
	path := filepath.Join(w.OutputDir, "All_Signals.csv")
	cw, done, err := w.create(path)
	if err != nil {
		return "", err
	}
	signals := in.Groups.AllSignals()
	if err := cw.Write(header(signals, in.Units)); err != nil {
		done()
		return "", err
	}
	for _, slot := range in.Slots {
		if err := cw.Write(row(slot, signals, in)); err != nil {
			done()
			return "", err
		}
	}
	if err := done(); err != nil {
		return "", err
	}
	return path, nil
}

func header(signals []dbc.SignalKey, units func(dbc.SignalKey) string) []string {
	h := make([]string, 0, len(signals)+1)
	h = append(h, "Time[s]")
	for _, key := range signals {
		cell := key.Signal
		if units != nil {
			if unit := units(key); unit != "" {
				cell = fmt.Sprintf("%s[%s]", key.Signal, unit)
			}
		}
		h = append(h, cell)
	}
	return h
}

func row(slot asc.Slot, signals []dbc.SignalKey, in Input) []string {
	r := make([]string, 0, len(signals)+1)
	r = append(r, FormatTime(slot.Time(in.SampleInterval)))
	values := in.Values[slot]
	for _, key := range signals {
		if v, ok := values[key]; ok {
			r = append(r, FormatValue(v))
		} else {
			r = append(r, "")
		}
	}
	return r
}

// create opens the file with the configured output encoding and returns a
// CSV writer plus a finisher that flushes and closes everything.
func (w *Writer) create(path string) (*csv.Writer, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	sink, closeSink, err := encodedWriter(f, w.Encoding)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	cw := csv.NewWriter(sink)
	done := func() error {
		cw.Flush()
		werr := cw.Error()
		cerr := closeSink()
		ferr := f.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
		return ferr
	}
	return cw, done, nil
}

func encodedWriter(f *os.File, name string) (io.Writer, func() error, error) {
	switch name {
	case "", "utf-8-sig":
		if _, err := f.Write(utf8BOM); err != nil {
			return nil, nil, err
		}
		return f, func() error { return nil }, nil
	case "utf-8":
		return f, func() error { return nil }, nil
	case "gbk", "gb2312":
		tw := transform.NewWriter(f, simplifiedchinese.GBK.NewEncoder())
		return tw, tw.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported csv encoding %q", name)
	}
}
