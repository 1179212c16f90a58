package asc

import (
	"testing"

	"example.com/canconv/internal/dbc"
)

func fillKey(name string) dbc.SignalKey {
	return dbc.SignalKey{Catalog: "m.dbc", Message: "B", Signal: name}
}

func TestFillGapsWithinBucket(t *testing.T) {
	a := fillKey("A")
	table := Table{
		0: {a: dbc.Num(1)},
		1: {},
		2: {a: dbc.Num(5)},
		3: {},
	}
	slots := []Slot{0, 1, 2, 3}
	filled := FillGaps(table, slots, []dbc.SignalKey{a}, 0.1, 1.0)

	// Genuine values survive untouched.
	if v := filled[0][a]; v.Num != 1 {
		t.Errorf("slot 0 = %v, want genuine 1", v.Num)
	}
	if v := filled[2][a]; v.Num != 5 {
		t.Errorf("slot 2 = %v, want genuine 5", v.Num)
	}
	// Gaps take the bucket's latest genuine value.
	if v, ok := filled[1][a]; !ok || v.Num != 5 {
		t.Errorf("slot 1 = %v, %v, want filled 5", v, ok)
	}
	if v, ok := filled[3][a]; !ok || v.Num != 5 {
		t.Errorf("slot 3 = %v, %v, want filled 5", v, ok)
	}
}

func TestFillGapsDoesNotCrossBuckets(t *testing.T) {
	a := fillKey("A")
	// Slot 0 is in bucket 0, slot 10 (t=1.0s) in bucket 1.
	table := Table{
		0:  {a: dbc.Num(7)},
		10: {},
	}
	slots := []Slot{0, 10}
	filled := FillGaps(table, slots, []dbc.SignalKey{a}, 0.1, 1.0)

	if v, ok := filled[0][a]; !ok || v.Num != 7 {
		t.Errorf("slot 0 = %v, %v, want 7", v, ok)
	}
	if _, ok := filled[10][a]; ok {
		t.Error("slot 10 should stay absent, bucket 1 has no genuine value")
	}
}

func TestFillGapsUntouchedSignalStaysAbsent(t *testing.T) {
	a, b := fillKey("A"), fillKey("B")
	table := Table{
		0: {a: dbc.Num(1)},
		1: {},
	}
	slots := []Slot{0, 1}
	filled := FillGaps(table, slots, []dbc.SignalKey{a, b}, 0.1, 1.0)

	if _, ok := filled[0][b]; ok {
		t.Error("signal B was never observed, slot 0 should stay absent")
	}
	if _, ok := filled[1][b]; ok {
		t.Error("signal B was never observed, slot 1 should stay absent")
	}
}
