package asc

import (
	"math"

	"example.com/canconv/internal/dbc"
)

// FillGaps derives the filled table: slots missing a value for a signal
// borrow the most recent genuine value from another slot in the same fill
// bucket. Buckets are floor(slotTime/fillInterval) wide, so a carried value
// never propagates further than one fill window. Genuine values are never
// overwritten; a signal with no value anywhere in the bucket stays absent.
func FillGaps(table Table, slots []Slot, signals []dbc.SignalKey, sampleInterval, fillInterval float64) Table {
	// Per (bucket, signal) fill source: the latest genuine value in slot
	// order within the bucket.
	sources := make(map[int64]map[dbc.SignalKey]dbc.Value)
	for _, slot := range slots {
		bucket := bucketFor(slot, sampleInterval, fillInterval)
		row := table[slot]
		if len(row) == 0 {
			continue
		}
		src := sources[bucket]
		if src == nil {
			src = make(map[dbc.SignalKey]dbc.Value)
			sources[bucket] = src
		}
		for key, v := range row {
			src[key] = v
		}
	}

	filled := make(Table, len(table))
	for _, slot := range slots {
		bucket := bucketFor(slot, sampleInterval, fillInterval)
		src := sources[bucket]
		row := make(map[dbc.SignalKey]dbc.Value, len(signals))
		for _, key := range signals {
			if v, ok := table[slot][key]; ok {
				row[key] = v
				continue
			}
			if v, ok := src[key]; ok {
				row[key] = v
			}
		}
		filled[slot] = row
	}
	return filled
}

func bucketFor(slot Slot, sampleInterval, fillInterval float64) int64 {
	return int64(math.Floor(slot.Time(sampleInterval) / fillInterval))
}
