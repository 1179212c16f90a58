package asc

import (
	"sort"

	"example.com/canconv/internal/dbc"
)

// Table maps slot to signal to one representative value.
type Table map[Slot]map[dbc.SignalKey]dbc.Value

// Aggregate collapses the sampled value lists into one value per
// (slot, signal): the last value appended in file order. Within a sampling
// interval the most recent reading wins, modeling the state at sample time.
// No interpolation or averaging.
func Aggregate(sampled map[Slot]map[dbc.SignalKey][]dbc.Value) Table {
	table := make(Table, len(sampled))
	for slot, signals := range sampled {
		row := make(map[dbc.SignalKey]dbc.Value, len(signals))
		for key, values := range signals {
			if len(values) == 0 {
				continue
			}
			row[key] = values[len(values)-1]
		}
		table[slot] = row
	}
	return table
}

// Slots returns the table's slot keys in ascending order.
func (t Table) Slots() []Slot {
	slots := make([]Slot, 0, len(t))
	for slot := range t {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}
