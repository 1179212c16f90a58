package asc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUndetectableEncoding reports that no candidate encoding decoded the
// probe region of the file cleanly.
var ErrUndetectableEncoding = errors.New("text encoding could not be detected")

const probeSize = 64 * 1024

type encodingCandidate struct {
	name string
	enc  encoding.Encoding
}

// Candidates are tried in priority order and the first clean decode wins.
// Latin-1 maps every byte, so it acts as the byte-preserving fallback.
var encodingCandidates = []encodingCandidate{
	{"utf-8", unicode.UTF8},
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"latin-1", charmap.ISO8859_1},
}

// OpenDetected opens a text file and commits to the first candidate encoding
// under which a bounded probe read decodes without error. The returned reader
// yields UTF-8 regardless of the file's own encoding.
func OpenDetected(path string) (*DetectedFile, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	probe := make([]byte, probeSize)
	n, err := f.Read(probe)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, "", err
	}
	probe = probe[:n]

	for _, cand := range encodingCandidates {
		if !probeDecodes(cand, probe) {
			continue
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, "", err
		}
		tap := &byteTap{r: f}
		return &DetectedFile{
			file:   f,
			tap:    tap,
			reader: transform.NewReader(tap, cand.enc.NewDecoder()),
		}, cand.name, nil
	}
	f.Close()
	return nil, "", fmt.Errorf("%w: %s", ErrUndetectableEncoding, path)
}

func probeDecodes(cand encodingCandidate, probe []byte) bool {
	if cand.enc == unicode.UTF8 {
		return utf8ProbeValid(probe)
	}
	decoded, err := cand.enc.NewDecoder().Bytes(probe)
	if err != nil {
		return false
	}
	// The x/text decoders substitute U+FFFD instead of failing; treat any
	// substitution in the probe as a decode error. The probe may cut a
	// multibyte sequence at its end, so one trailing replacement rune within
	// the final sequence width is tolerated.
	limit := len(decoded)
	if limit > 4 {
		limit -= 4
	}
	for i, r := range string(decoded) {
		if r == utf8.RuneError && i < limit {
			return false
		}
	}
	return true
}

func utf8ProbeValid(probe []byte) bool {
	// The probe boundary may cut a multibyte rune; trim the partial rune
	// before validating. Over-trimming a complete final rune is harmless
	// here, only validity of the bulk matters.
	end := len(probe)
	for end > 0 && end > len(probe)-utf8.UTFMax && !utf8.RuneStart(probe[end-1]) {
		end--
	}
	if end > 0 && probe[end-1] >= 0xC0 {
		end--
	}
	return utf8.Valid(probe[:end])
}

// DetectedFile reads a log transcoded to UTF-8 while tallying the raw bytes
// consumed from disk, so progress against the file size stays exact even for
// multibyte encodings.
type DetectedFile struct {
	file   *os.File
	tap    *byteTap
	reader io.Reader
}

func (d *DetectedFile) Read(p []byte) (int, error) { return d.reader.Read(p) }

func (d *DetectedFile) Close() error { return d.file.Close() }

// RawBytesRead reports bytes consumed from the underlying file, before
// transcoding.
func (d *DetectedFile) RawBytesRead() int64 { return d.tap.n }

type byteTap struct {
	r io.Reader
	n int64
}

func (t *byteTap) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.n += int64(n)
	return n, err
}
