package calendar

import (
	"sort"
	"time"
)

// Grid is an indexed sequence of weeks over a date range.
type Grid struct {
	Weeks []Week
	index map[time.Time]int
}

// NewGrid builds the grid of weeks overlapping [start, end].
func NewGrid(start, end time.Time) *Grid {
	weeks := WeeksInRange(start, end)
	index := make(map[time.Time]int, len(weeks))
	for i, w := range weeks {
		index[w.Start] = i
	}
	return &Grid{Weeks: weeks, index: index}
}

// Len returns the number of weeks in the grid.
func (g *Grid) Len() int {
	return len(g.Weeks)
}

// Starts returns the start date of every week, in order.
func (g *Grid) Starts() []time.Time {
	starts := make([]time.Time, len(g.Weeks))
	for i, w := range g.Weeks {
		starts[i] = w.Start
	}
	return starts
}

// IndexOf returns the position of the week starting at start.
func (g *Grid) IndexOf(start time.Time) (int, bool) {
	i, ok := g.index[Normalize(start)]
	return i, ok
}

// Lookup returns the grid week containing d.
func (g *Grid) Lookup(d time.Time) (Week, bool) {
	d = Normalize(d)
	i := sort.Search(len(g.Weeks), func(i int) bool {
		return !g.Weeks[i].End.Before(d)
	})
	if i == len(g.Weeks) || !g.Weeks[i].Contains(d) {
		return Week{}, false
	}
	return g.Weeks[i], true
}

// MaxNumber returns the largest week number present in the grid.
func (g *Grid) MaxNumber() int {
	max := 0
	for _, w := range g.Weeks {
		if w.Number > max {
			max = w.Number
		}
	}
	return max
}
