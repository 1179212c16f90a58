package asc

import (
	"bytes"
	"testing"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		name   string
		line   string
		want   FrameEvent
		wantOK bool
	}{
		{
			name:   "standard frame",
			line:   "0.10 1 1A0 Rx d 2 0A FF",
			want:   FrameEvent{Timestamp: 0.10, FrameID: 0x1A0, Payload: []byte{0x0A, 0xFF}},
			wantOK: true,
		},
		{
			name:   "extended frame marker",
			line:   "1.234567 2 100x Rx d 8 01 02 03 04 05 06 07 08",
			want:   FrameEvent{Timestamp: 1.234567, FrameID: 0x100, Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
			wantOK: true,
		},
		{
			name:   "transmit direction",
			line:   "0.5 1 200 Tx d 1 7F",
			want:   FrameEvent{Timestamp: 0.5, FrameID: 0x200, Payload: []byte{0x7F}},
			wantOK: true,
		},
		{
			name:   "leading whitespace",
			line:   "   0.10 1 1A0 Rx d 1 00",
			want:   FrameEvent{Timestamp: 0.10, FrameID: 0x1A0, Payload: []byte{0}},
			wantOK: true,
		},
		{name: "empty", line: ""},
		{name: "comment", line: "; date Tue Jan 1 00:00:00 2030"},
		{name: "too few fields", line: "0.10 1 1A0 Rx d 0"},
		{name: "negative timestamp", line: "-0.10 1 1A0 Rx d 1 00"},
		{name: "bad timestamp", line: "abc 1 1A0 Rx d 1 00"},
		{name: "bad channel", line: "0.10 CAN 1A0 Rx d 1 00"},
		{name: "bad frame id", line: "0.10 1 ZZZ Rx d 1 00"},
		{name: "bad direction", line: "0.10 1 1A0 Err d 1 00"},
		{name: "missing data marker", line: "0.10 1 1A0 Rx r 1 00"},
		{name: "bad byte count", line: "0.10 1 1A0 Rx d x 00"},
		{name: "odd payload token", line: "0.10 1 1A0 Rx d 1 0"},
		{name: "non hex payload", line: "0.10 1 1A0 Rx d 1 ZZ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseLine(tc.line)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.Timestamp != tc.want.Timestamp {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, tc.want.Timestamp)
			}
			if got.FrameID != tc.want.FrameID {
				t.Errorf("frame id = 0x%X, want 0x%X", got.FrameID, tc.want.FrameID)
			}
			if !bytes.Equal(got.Payload, tc.want.Payload) {
				t.Errorf("payload = % X, want % X", got.Payload, tc.want.Payload)
			}
		})
	}
}
