// Package slots computes candidate booking intervals from an owner's weekly
// availability. It is pure: same inputs, same output, no side effects.
package slots

import (
	"sort"
	"time"
)

// Block is one availability window on a weekday (Mon=0 .. Sun=6), expressed
// in minutes from local midnight.
type Block struct {
	Weekday  int
	StartMin int
	EndMin   int
}

type Interval struct {
	Start time.Time `json:"start_at"`
	End   time.Time `json:"end_at"`
}

// WeekdayMon0 maps time.Weekday (Sunday=0) onto the Monday-based index used
// by availability blocks.
func WeekdayMon0(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Build emits fixed-width candidate intervals for every day in the horizon,
// ordered by start time and deduplicated. Intervals whose end does not lie
// after now are dropped, so a slot that already started is never offered.
// Days are resolved in now's location; pass the owner's local time.
func Build(now time.Time, days, slotMinutes int, blocks []Block) []Interval {
	if days <= 0 || slotMinutes <= 0 {
		return nil
	}

	var out []Interval
	for di := 0; di < days; di++ {
		day := now.AddDate(0, 0, di)
		wd := WeekdayMon0(day)
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

		for _, b := range blocks {
			if b.Weekday != wd {
				continue
			}
			for m := b.StartMin; m+slotMinutes <= b.EndMin; m += slotMinutes {
				start := midnight.Add(time.Duration(m) * time.Minute)
				end := start.Add(time.Duration(slotMinutes) * time.Minute)
				if !end.After(now) {
					continue
				}
				out = append(out, Interval{Start: start, End: end})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return dedupe(out)
}

// Subtract removes candidates that collide with the busy set. Collisions are
// keyed on exact (start, end) equality, not interval overlap: all bookings
// are assumed to share the owner's current slot granularity. If the owner
// changes slot duration after bookings exist, stale bookings with different
// boundaries are not detected here; the store-level uniqueness constraint
// remains the final guard.
func Subtract(candidates, busy []Interval) []Interval {
	if len(busy) == 0 {
		return candidates
	}

	type key struct{ start, end int64 }
	occupied := make(map[key]struct{}, len(busy))
	for _, b := range busy {
		occupied[key{b.Start.Unix(), b.End.Unix()}] = struct{}{}
	}

	out := make([]Interval, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := occupied[key{c.Start.Unix(), c.End.Unix()}]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// DayBlocks derives one availability block per configured work day from
// day-start/day-end hour bounds.
func DayBlocks(workDays []int, dayStart, dayEnd int) []Block {
	blocks := make([]Block, 0, len(workDays))
	for _, wd := range workDays {
		if wd < 0 || wd > 6 {
			continue
		}
		blocks = append(blocks, Block{Weekday: wd, StartMin: dayStart * 60, EndMin: dayEnd * 60})
	}
	return blocks
}

func dedupe(in []Interval) []Interval {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, iv := range in[1:] {
		last := out[len(out)-1]
		if iv.Start.Equal(last.Start) && iv.End.Equal(last.End) {
			continue
		}
		out = append(out, iv)
	}
	return out
}
