package csvtab

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"example.com/canconv/internal/asc"
	"example.com/canconv/internal/dbc"
)

func testInput() Input {
	level := dbc.SignalKey{Catalog: "pack.dbc", Message: "Pack", Signal: "BatP1_Level"}
	status := dbc.SignalKey{Catalog: "pack.dbc", Message: "Pack", Signal: "Status"}
	groups := asc.Groups{
		Members: map[string][]dbc.SignalKey{
			"BatP1":        {level},
			asc.GroupOther: {status},
		},
		Order: []string{"BatP1", asc.GroupOther},
	}
	values := asc.Table{
		0: {level: dbc.Num(10), status: dbc.Num(1)},
		1: {level: dbc.Num(20)},
		2: {level: dbc.Num(30), status: dbc.Num(3)},
	}
	units := func(k dbc.SignalKey) string {
		if k == level {
			return "A"
		}
		return ""
	}
	return Input{
		Groups:         groups,
		Slots:          []asc.Slot{0, 1, 2},
		SampleInterval: 0.1,
		Values:         values,
		Units:          units,
		Stats:          Stats{OriginalCount: 5, SlotCount: 3, SignalCount: 2},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return rows
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutputDir: dir, Encoding: "utf-8-sig", GroupSize: 2}
	files, err := w.WriteAll(testInput())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	wantFiles := []string{
		filepath.Join(dir, "BatP1.csv"),
		filepath.Join(dir, "Other.csv"),
		filepath.Join(dir, "Summary.csv"),
		filepath.Join(dir, "All_Signals.csv"),
	}
	if !reflect.DeepEqual(files, wantFiles) {
		t.Fatalf("files = %v, want %v", files, wantFiles)
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Error("utf-8-sig output must start with a BOM")
	}

	rows := readCSV(t, files[0])
	if !reflect.DeepEqual(rows[0], []string{"Time[s]", "BatP1_Level[A]"}) {
		t.Errorf("header = %v", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []string{"0", "10"}) {
		t.Errorf("row 1 = %v", rows[1])
	}
	if !reflect.DeepEqual(rows[2], []string{"0.1", "20"}) {
		t.Errorf("row 2 = %v", rows[2])
	}
	if !reflect.DeepEqual(rows[3], []string{"0.2", "30"}) {
		t.Errorf("row 3 = %v", rows[3])
	}
	// GroupSize 2 inserts a blank separator line after every second data
	// row; csv readers skip it, so check the raw text.
	text := string(bytes.TrimPrefix(data, utf8BOM))
	if !strings.Contains(text, "0.1,20\n\n0.2,30") {
		t.Errorf("missing blank separator:\n%s", text)
	}
}

func TestWriteAllSignalsColumns(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutputDir: dir}
	files, err := w.WriteAll(testInput())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	rows := readCSV(t, files[len(files)-1])
	if !reflect.DeepEqual(rows[0], []string{"Time[s]", "BatP1_Level[A]", "Status"}) {
		t.Errorf("header = %v", rows[0])
	}
	// Absent values render as empty cells.
	if !reflect.DeepEqual(rows[2], []string{"0.1", "20", ""}) {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestWriteSummaryContent(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{OutputDir: dir, Encoding: "utf-8"}
	files, err := w.WriteAll(testInput())
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	var joined strings.Builder
	for _, row := range readCSV(t, files[2]) {
		joined.WriteString(strings.Join(row, ",") + "\n")
	}
	content := joined.String()
	for _, want := range []string{
		"Conversion Summary",
		"Original data points,5",
		"Sampled time slots,3",
		"Signals,2",
		"BatP1,1,BatP1.csv",
		"Other,1,Other.csv",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("summary missing %q:\n%s", want, content)
		}
	}
}

func TestWriteAllUnknownEncoding(t *testing.T) {
	w := &Writer{OutputDir: t.TempDir(), Encoding: "latin-1"}
	if _, err := w.WriteAll(testInput()); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestCleanFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BatP1.csv")
	content := append([]byte{}, utf8BOM...)
	content = append(content, []byte("Time[s],A\n0,10\n\n0.1,20\n\n")...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := CleanFile(path)
	if err != nil {
		t.Fatalf("CleanFile: %v", err)
	}
	if res.RemovedRows != 2 || res.CleanedRows != 3 {
		t.Errorf("result = %+v, want 2 removed, 3 kept", res)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Error("BOM must be preserved")
	}
	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Errorf("rows after clean = %d, want 3", len(rows))
	}
}

func TestCleanDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x,y\n\n1,2\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	results, err := CleanDirectory(dir)
	if err != nil {
		t.Fatalf("CleanDirectory: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Errorf("%s: %v", res.File, res.Err)
		}
		if res.RemovedRows != 1 {
			t.Errorf("%s removed = %d, want 1", res.File, res.RemovedRows)
		}
	}
}
