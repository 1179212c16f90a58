package asc

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// FrameEvent is one timestamped frame parsed from a log line. It lives only
// long enough to be handed to the sampler.
type FrameEvent struct {
	Timestamp float64
	FrameID   uint32
	Payload   []byte
}

// ParseLine parses one log line of the fixed-field grammar
//
//	<timestamp> <channel> <frameID[x]> <Rx|Tx> d <byteCount> <hh hh ...>
//
// The boolean result reports whether the line matched; empty lines, comment
// lines (leading ';') and anything off-grammar are skipped without error,
// since the log format is best-effort.
func ParseLine(line string) (FrameEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ";") {
		return FrameEvent{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return FrameEvent{}, false
	}
	ts, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || ts < 0 {
		return FrameEvent{}, false
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return FrameEvent{}, false
	}
	idToken := fields[2]
	// Extended 29-bit ids carry a trailing marker; the numeric value is
	// parsed the same way either way.
	idToken = strings.TrimSuffix(idToken, "x")
	frameID, err := strconv.ParseUint(idToken, 16, 32)
	if err != nil {
		return FrameEvent{}, false
	}
	if fields[3] != "Rx" && fields[3] != "Tx" {
		return FrameEvent{}, false
	}
	if fields[4] != "d" {
		return FrameEvent{}, false
	}
	count, err := strconv.Atoi(fields[5])
	if err != nil || count < 0 {
		return FrameEvent{}, false
	}
	hexBytes := fields[6:]
	var sb strings.Builder
	for _, tok := range hexBytes {
		if len(tok) != 2 {
			return FrameEvent{}, false
		}
		sb.WriteString(tok)
	}
	payload, err := hex.DecodeString(sb.String())
	if err != nil {
		return FrameEvent{}, false
	}
	return FrameEvent{Timestamp: ts, FrameID: uint32(frameID), Payload: payload}, true
}
