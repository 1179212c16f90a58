package csvtab

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CleanResult reports the outcome of stripping blank rows from one file.
type CleanResult struct {
	File         string
	OriginalRows int
	CleanedRows  int
	RemovedRows  int
	Err          error
}

// isBlankRow reports whether a raw CSV line carries no cell content. Both
// fully empty lines and separator-only lines like ",,," count as blank.
func isBlankRow(line string) bool {
	return strings.Trim(line, ", \t\r") == ""
}

// CleanFile rewrites a CSV without its blank rows. The group files carry
// blank separator rows by design; cleaning produces a variant suitable for
// tools that choke on them. A leading UTF-8 BOM is preserved. The file is
// processed line-wise: encoding/csv drops empty lines on read, and those are
// exactly the rows being counted here.
func CleanFile(path string) (CleanResult, error) {
	res := CleanResult{File: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	hasBOM := bytes.HasPrefix(data, utf8BOM)
	if hasBOM {
		data = data[len(utf8BOM):]
	}
	text := strings.TrimSuffix(string(data), "\n")
	var kept []string
	if text != "" {
		for _, line := range strings.Split(text, "\n") {
			res.OriginalRows++
			if isBlankRow(line) {
				res.RemovedRows++
				continue
			}
			kept = append(kept, line)
			res.CleanedRows++
		}
	}
	var buf bytes.Buffer
	if hasBOM {
		buf.Write(utf8BOM)
	}
	for _, line := range kept {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return res, err
	}
	return res, nil
}

// CleanDirectory cleans every *.csv in the directory and returns a result
// per file, failures included.
func CleanDirectory(dir string) ([]CleanResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	results := make([]CleanResult, 0, len(paths))
	for _, path := range paths {
		res, err := CleanFile(path)
		if err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}
