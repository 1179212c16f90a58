package asc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"example.com/canconv/internal/dbc"
)

// Grouping constants. The numbered pattern is case-sensitive on the literal
// prefix; the two marker tokens match case-insensitively.
const (
	GroupBATPQ = "BATPQ"
	GroupBATPS = "BATPS"
	GroupOther = "Other"
)

var batpPattern = regexp.MustCompile(`BatP(\d+)`)

// GroupFor classifies one qualified signal name. The rules are evaluated in
// order; every name lands in exactly one group.
func GroupFor(name string) string {
	upper := strings.ToUpper(name)
	if strings.Contains(upper, GroupBATPQ) {
		return GroupBATPQ
	}
	if strings.Contains(upper, GroupBATPS) {
		return GroupBATPS
	}
	if m := batpPattern.FindString(name); m != "" {
		return m
	}
	return GroupOther
}

// Groups holds the classification of the found-signal set: per-group member
// lists (sorted by qualified name) and the presentation order of the groups.
type Groups struct {
	Members map[string][]dbc.SignalKey
	Order   []string
}

// Classify assigns every found signal to its group and fixes the group
// presentation order: numbered BatP groups ascending by suffix, then BATPQ,
// then BATPS, then Other.
func Classify(found map[dbc.SignalKey]struct{}) Groups {
	members := make(map[string][]dbc.SignalKey)
	for key := range found {
		group := GroupFor(key.Qualified())
		members[group] = append(members[group], key)
	}
	order := make([]string, 0, len(members))
	for group := range members {
		order = append(order, group)
	}
	sort.Slice(order, func(i, j int) bool {
		ri, ni := groupRank(order[i])
		rj, nj := groupRank(order[j])
		if ri != rj {
			return ri < rj
		}
		if ri == 0 {
			return ni < nj
		}
		return order[i] < order[j]
	})
	for _, keys := range members {
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Qualified() < keys[j].Qualified()
		})
	}
	return Groups{Members: members, Order: order}
}

// SortGroupNames sorts group names in place using the same order Classify
// produces.
func SortGroupNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ri, ni := groupRank(names[i])
		rj, nj := groupRank(names[j])
		if ri != rj {
			return ri < rj
		}
		if ri == 0 {
			return ni < nj
		}
		return names[i] < names[j]
	})
}

// groupRank yields a total order over group names: (0, n) for BatP<n>, then
// BATPQ, BATPS and Other in fixed positions.
func groupRank(name string) (int, int) {
	switch name {
	case GroupBATPQ:
		return 1, 0
	case GroupBATPS:
		return 2, 0
	case GroupOther:
		return 3, 0
	}
	if strings.HasPrefix(name, "BatP") {
		if n, err := strconv.Atoi(name[4:]); err == nil {
			return 0, n
		}
	}
	return 3, 0
}

// AllSignals flattens the group members into one sorted list.
func (g Groups) AllSignals() []dbc.SignalKey {
	var all []dbc.SignalKey
	for _, keys := range g.Members {
		all = append(all, keys...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Qualified() < all[j].Qualified()
	})
	return all
}
