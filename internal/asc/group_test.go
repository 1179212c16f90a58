package asc

import (
	"reflect"
	"testing"

	"example.com/canconv/internal/dbc"
)

func TestGroupFor(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{name: "main.dbc::Battery::BatP3_BMS_Voltage", want: "BatP3"},
		{name: "main.dbc::Battery::BatP10_Temp", want: "BatP10"},
		{name: "main.dbc::Battery::Sys_BATPQ_Total", want: GroupBATPQ},
		{name: "main.dbc::Battery::batpq_lowercase", want: GroupBATPQ},
		{name: "main.dbc::Battery::BATPS_Summary", want: GroupBATPS},
		{name: "main.dbc::Battery::PackCurrent", want: GroupOther},
		// Pattern match is case sensitive; BATP5 is not a numbered group.
		{name: "main.dbc::Battery::BATP5_Voltage", want: GroupOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GroupFor(tc.name); got != tc.want {
				t.Errorf("GroupFor(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestClassifyOrder(t *testing.T) {
	found := map[dbc.SignalKey]struct{}{
		{Catalog: "m.dbc", Message: "B", Signal: "PackCurrent"}:     {},
		{Catalog: "m.dbc", Message: "B", Signal: "BatP10_Voltage"}:  {},
		{Catalog: "m.dbc", Message: "B", Signal: "BatP2_Voltage"}:   {},
		{Catalog: "m.dbc", Message: "B", Signal: "BatP2_Current"}:   {},
		{Catalog: "m.dbc", Message: "B", Signal: "Sys_BATPQ_Total"}: {},
		{Catalog: "m.dbc", Message: "B", Signal: "BATPS_Summary"}:   {},
	}
	groups := Classify(found)

	wantOrder := []string{"BatP2", "BatP10", GroupBATPQ, GroupBATPS, GroupOther}
	if !reflect.DeepEqual(groups.Order, wantOrder) {
		t.Fatalf("order = %v, want %v", groups.Order, wantOrder)
	}
	if n := len(groups.Members["BatP2"]); n != 2 {
		t.Errorf("BatP2 members = %d, want 2", n)
	}
	// Members sort by qualified name within each group.
	batp2 := groups.Members["BatP2"]
	if batp2[0].Signal != "BatP2_Current" || batp2[1].Signal != "BatP2_Voltage" {
		t.Errorf("BatP2 member order = %v", batp2)
	}
	if all := groups.AllSignals(); len(all) != len(found) {
		t.Errorf("AllSignals = %d keys, want %d", len(all), len(found))
	}
}

func TestSortGroupNames(t *testing.T) {
	names := []string{GroupOther, GroupBATPS, "BatP10", GroupBATPQ, "BatP2"}
	SortGroupNames(names)
	want := []string{"BatP2", "BatP10", GroupBATPQ, GroupBATPS, GroupOther}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("sorted = %v, want %v", names, want)
	}
}
