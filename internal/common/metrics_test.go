package common

import "testing"

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.SetTotalBytes(200)
	m.AddLine()
	m.AddLine()
	m.AddBytes(100)
	m.AddBytes(-5)
	m.IncFrame()

	s := m.Snapshot()
	if s.Lines != 2 {
		t.Errorf("lines = %d, want 2", s.Lines)
	}
	if s.Frames != 1 {
		t.Errorf("frames = %d, want 1", s.Frames)
	}
	if s.Bytes != 100 {
		t.Errorf("bytes = %d, want 100", s.Bytes)
	}
	if got := s.Completion(); got != 0.5 {
		t.Errorf("completion = %v, want 0.5", got)
	}
}

func TestCompletionClamps(t *testing.T) {
	s := MetricsSnapshot{Bytes: 300, TotalBytes: 200}
	if got := s.Completion(); got != 1 {
		t.Errorf("completion = %v, want 1", got)
	}
	s = MetricsSnapshot{Bytes: 10}
	if got := s.Completion(); got != 0 {
		t.Errorf("completion without total = %v, want 0", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{in: 512, want: "512 B"},
		{in: 2048, want: "2.00 KiB"},
		{in: 5 * 1024 * 1024, want: "5.00 MiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
