package asc

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.asc")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestOpenDetectedUTF8(t *testing.T) {
	path := writeRaw(t, []byte("; comment\n0.01 1 100 Rx d 1 0A\n"))
	r, name, err := OpenDetected(path)
	if err != nil {
		t.Fatalf("OpenDetected: %v", err)
	}
	defer r.Close()
	if name != "utf-8" {
		t.Errorf("encoding = %q, want utf-8", name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "0.01 1 100 Rx d 1 0A") {
		t.Errorf("content = %q", data)
	}
}

func TestOpenDetectedGBK(t *testing.T) {
	// GBK bytes for the two-character comment marker followed by ASCII.
	raw := append([]byte("; "), 0xD6, 0xD0, 0xCE, 0xC4)
	raw = append(raw, []byte("\n0.01 1 100 Rx d 1 0A\n")...)
	path := writeRaw(t, raw)
	r, name, err := OpenDetected(path)
	if err != nil {
		t.Fatalf("OpenDetected: %v", err)
	}
	defer r.Close()
	if name != "gbk" {
		t.Errorf("encoding = %q, want gbk", name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "中文") {
		t.Errorf("decoded content = %q, want the GBK text decoded", data)
	}
	if !strings.Contains(string(data), "0.01 1 100 Rx d 1 0A") {
		t.Errorf("content = %q", data)
	}
	if got := r.RawBytesRead(); got != int64(len(raw)) {
		t.Errorf("raw bytes = %d, want %d (pre-transcoding size)", got, len(raw))
	}
	if exp := len(raw); len(data) <= exp {
		t.Errorf("decoded length %d should exceed raw length %d for GBK text", len(data), exp)
	}
}

func TestOpenDetectedMissingFile(t *testing.T) {
	if _, _, err := OpenDetected(filepath.Join(t.TempDir(), "absent.asc")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
