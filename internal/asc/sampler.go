package asc

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"example.com/canconv/internal/common"
	"example.com/canconv/internal/dbc"
)

// Slot is a discretized timestamp: the integer multiple of the sampling
// interval the timestamp rounds to. Keeping the integer index rather than
// the float product keeps map keys exact.
type Slot int64

// Time converts the slot index back to seconds.
func (s Slot) Time(interval float64) float64 {
	return float64(s) * interval
}

// ResourceGuard holds the cardinality thresholds for the one-time resource
// warning. The warning is advisory, not a hard limit. Zero fields fall back
// to the defaults.
type ResourceGuard struct {
	// CheckAfterLines suppresses the check until this many lines have been
	// processed, so small files never pay for it.
	CheckAfterLines int64
	SlotWarn        int
	SignalWarn      int
}

var defaultResourceGuard = ResourceGuard{
	CheckAfterLines: 100_000,
	SlotWarn:        500_000,
	SignalWarn:      10_000,
}

func (g ResourceGuard) withDefaults() ResourceGuard {
	if g.CheckAfterLines <= 0 {
		g.CheckAfterLines = defaultResourceGuard.CheckAfterLines
	}
	if g.SlotWarn <= 0 {
		g.SlotWarn = defaultResourceGuard.SlotWarn
	}
	if g.SignalWarn <= 0 {
		g.SignalWarn = defaultResourceGuard.SignalWarn
	}
	return g
}

// Sampler buckets decoded signal values into fixed-width time slots. It is
// single-use: one instance per log file, never shared between goroutines.
type Sampler struct {
	interval float64
	debug    bool
	catalog  *dbc.Catalog
	metrics  *common.Metrics
	guard    ResourceGuard

	slots         map[Slot]map[dbc.SignalKey][]dbc.Value
	found         map[dbc.SignalKey]struct{}
	lineCount     int64
	originalCount int
	warned        bool
}

// NewSampler prepares a sampler for one parse pass. The interval must be
// positive; the caller validates configuration before any I/O.
func NewSampler(catalog *dbc.Catalog, interval float64, debug bool) *Sampler {
	return &Sampler{
		interval: interval,
		debug:    debug,
		catalog:  catalog,
		guard:    defaultResourceGuard,
		slots:    make(map[Slot]map[dbc.SignalKey][]dbc.Value),
		found:    make(map[dbc.SignalKey]struct{}),
	}
}

// SetMetrics attaches a progress recorder to the sampler.
func (s *Sampler) SetMetrics(m *common.Metrics) {
	s.metrics = m
}

// SetResourceGuard replaces the warning thresholds. Zero fields keep their
// defaults.
func (s *Sampler) SetResourceGuard(g ResourceGuard) {
	s.guard = g.withDefaults()
}

// ParseFile scans the log top to bottom, feeding each line through the line
// decoder and the catalog. Line-level decode failures are skipped; only
// file-level failures (open, read, encoding) return an error.
func (s *Sampler) ParseFile(path string) error {
	r, encName, err := OpenDetected(path)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer r.Close()
	if s.metrics != nil {
		if info, err := os.Stat(path); err == nil {
			s.metrics.SetTotalBytes(info.Size())
		}
	}
	if s.debug {
		common.Logf("log %s opened as %s", path, encName)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var rawSeen int64
	for scanner.Scan() {
		if s.metrics != nil {
			s.metrics.AddLine()
			// Count bytes as read from disk, not post-transcoding, so the
			// completion fraction matches the file size for GBK inputs.
			if n := r.RawBytesRead(); n > rawSeen {
				s.metrics.AddBytes(n - rawSeen)
				rawSeen = n
			}
		}
		s.consumeLine(scanner.Text())
		s.checkResourceGuard()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log %s: %w", path, err)
	}
	return nil
}

func (s *Sampler) consumeLine(line string) {
	s.lineCount++
	ev, ok := ParseLine(line)
	if !ok {
		return
	}
	entry, ok := s.catalog.Frame(ev.FrameID)
	if !ok {
		// Not every frame on the bus is of interest.
		return
	}
	decoded, err := entry.Message.Decode(ev.Payload)
	if err != nil {
		if s.debug {
			common.Logf("decode frame 0x%X at %.6fs: %v", ev.FrameID, ev.Timestamp, err)
		}
		return
	}

	s.originalCount++
	if s.metrics != nil {
		s.metrics.IncFrame()
	}
	slot := s.slotFor(ev.Timestamp)
	values := s.slots[slot]
	if values == nil {
		values = make(map[dbc.SignalKey][]dbc.Value)
		s.slots[slot] = values
	}
	for name, v := range decoded {
		if v.IsText {
			// Enumerated values decode to labels; resolve back to the
			// numeric code when the definition has one so the emitted
			// table stays numeric wherever possible.
			if sig, ok := entry.Message.SignalByName(name); ok {
				if code, ok := sig.CodeForLabel(v.Label); ok {
					v = dbc.Num(code)
				}
			}
		}
		key := dbc.SignalKey{Catalog: entry.Catalog, Message: entry.Message.Name, Signal: name}
		values[key] = append(values[key], v)
		s.found[key] = struct{}{}
	}
}

// slotFor rounds a timestamp to the nearest slot index. Exact midpoints
// round half away from zero: 0.05 at interval 0.1 lands on slot 0.1.
func (s *Sampler) slotFor(ts float64) Slot {
	return Slot(math.Round(ts / s.interval))
}

func (s *Sampler) checkResourceGuard() {
	if s.warned || s.lineCount < s.guard.CheckAfterLines {
		return
	}
	if len(s.slots) > s.guard.SlotWarn || len(s.found) > s.guard.SignalWarn {
		s.warned = true
		common.Logf("resource warning: %d time slots, %d signals accumulated; output tables may be very large", len(s.slots), len(s.found))
	}
}

// Sampled returns the accumulated per-slot value lists.
func (s *Sampler) Sampled() map[Slot]map[dbc.SignalKey][]dbc.Value {
	return s.slots
}

// FoundSignals returns every signal observed during the parse pass.
func (s *Sampler) FoundSignals() map[dbc.SignalKey]struct{} {
	return s.found
}

// OriginalCount reports how many frames were decoded before sampling.
func (s *Sampler) OriginalCount() int {
	return s.originalCount
}

// Release drops the accumulated tables so a long-lived caller does not
// carry them between runs.
func (s *Sampler) Release() {
	s.slots = nil
	s.found = nil
}
