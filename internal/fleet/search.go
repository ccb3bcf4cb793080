package fleet

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type candidate struct {
	bus        Bus
	routeName  string
	start, end Stop
	segmentID  string
	multiplier decimal.NullDecimal
}

// better reports whether a should be preferred over b for the same bus:
// a declared segment first, then the widest stop range.
func (a candidate) better(b candidate) bool {
	if (a.segmentID != "") != (b.segmentID != "") {
		return a.segmentID != ""
	}
	if a.start.Sequence != b.start.Sequence {
		return a.start.Sequence < b.start.Sequence
	}
	return a.end.Sequence > b.end.Sequence
}

func (c candidate) match() Match {
	fare := c.bus.Fare
	if c.segmentID != "" && c.multiplier.Valid {
		fare = fare.Mul(c.multiplier.Decimal).Round(2)
	}
	return Match{
		Bus:           c.bus,
		RouteName:     c.routeName,
		StartStop:     c.start,
		EndStop:       c.end,
		SegmentID:     c.segmentID,
		Fare:          fare,
		DepartureTime: c.bus.DepartureTime.Add(c.start.DepartureOffset),
	}
}

// pickMatches keeps one candidate per bus, in first-seen bus order.
func pickMatches(cands []candidate) []Match {
	best := make(map[string]candidate, len(cands))
	order := make([]string, 0)
	for _, c := range cands {
		cur, ok := best[c.bus.ID]
		if !ok {
			order = append(order, c.bus.ID)
			best[c.bus.ID] = c
			continue
		}
		if c.better(cur) {
			best[c.bus.ID] = c
		}
	}
	out := make([]Match, 0, len(order))
	for _, id := range order {
		out = append(out, best[id].match())
	}
	return out
}

func sortMatches(ms []Match, order SortOrder) {
	var less func(a, b Match) bool
	switch order {
	case SortDepartureLate:
		less = func(a, b Match) bool { return a.DepartureTime.After(b.DepartureTime) }
	case SortFareLow:
		less = func(a, b Match) bool { return a.Fare.LessThan(b.Fare) }
	case SortFareHigh:
		less = func(a, b Match) bool { return a.Fare.GreaterThan(b.Fare) }
	default:
		less = func(a, b Match) bool { return a.DepartureTime.Before(b.DepartureTime) }
	}
	sort.SliceStable(ms, func(i, j int) bool { return less(ms[i], ms[j]) })
}

func validSort(o SortOrder) bool {
	switch o {
	case "", SortDepartureEarly, SortDepartureLate, SortFareLow, SortFareHigh:
		return true
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern; empty matches all.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
