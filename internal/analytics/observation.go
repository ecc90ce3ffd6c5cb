// Package analytics computes sequence-aware views over camera-trap
// observations: species distribution, weekly timeseries, location heatmap and
// hourly activity. Counting is sequence-aware throughout: within one sequence
// a species contributes the maximum count seen across the burst, never the
// sum, so duplicate detections of the same individuals are not double
// counted.
package analytics

import (
	"strings"
	"time"

	"github.com/camtrap/camtrap-agent/internal/sequence"
)

// Observation is a capture record joined with its machine-generated species
// observation. Nil pointer fields stand for absent values; the storage
// adapter converts rows at its boundary so the engine never sees loose data.
// Hour and WeekStart are precomputed by the adapter for the hourly and weekly
// views; when absent they are derived from Timestamp.
type Observation struct {
	ID             string
	DeploymentID   string
	MediaType      string
	EventID        string
	Timestamp      *time.Time
	ScientificName string
	Count          *int
	Latitude       *float64
	Longitude      *float64
	LocationName   string
	Hour           *int
	WeekStart      *time.Time
}

func (o Observation) ItemID() string { return o.ID }
func (o Observation) ItemTime() *time.Time { return o.Timestamp }
func (o Observation) Deployment() string { return o.DeploymentID }
func (o Observation) Event() string { return o.EventID }
func (o Observation) Video() bool { return strings.HasPrefix(o.MediaType, "video/") }

// observationSequences groups observations and returns every counting unit:
// real sequences first, then each untimed observation as its own singleton.
func observationSequences(obs []Observation, g sequence.Grouping) [][]Observation {
	items := make([]sequence.Item, len(obs))
	for i := range obs {
		items[i] = obs[i]
	}

	res := sequence.Group(items, g)

	units := make([][]Observation, 0, len(res.Sequences)+len(res.Untimed))
	for _, s := range res.Sequences {
		members := make([]Observation, len(s.Items))
		for i, it := range s.Items {
			members[i] = it.(Observation)
		}
		units = append(units, members)
	}
	for _, it := range res.Untimed {
		units = append(units, []Observation{it.(Observation)})
	}
	return units
}

// speciesMaxima returns, for one sequence, each species' maximum count across
// the members. A nil or negative count contributes zero; empty scientific
// names are ignored.
func speciesMaxima(members []Observation) map[string]int {
	maxima := make(map[string]int)
	for _, o := range members {
		if o.ScientificName == "" {
			continue
		}
		c := 0
		if o.Count != nil && *o.Count > 0 {
			c = *o.Count
		}
		if cur, ok := maxima[o.ScientificName]; !ok || c > cur {
			maxima[o.ScientificName] = c
		}
	}
	return maxima
}

// weekOf resolves a sequence's week bucket from its representative (first)
// member: the precomputed WeekStart when present, otherwise the Monday of the
// member's timestamp. The second return is false when no member has either.
func weekOf(members []Observation) (time.Time, bool) {
	for _, o := range members {
		if o.WeekStart != nil {
			return *o.WeekStart, true
		}
		if o.Timestamp != nil {
			return WeekStartOf(*o.Timestamp), true
		}
	}
	return time.Time{}, false
}

// WeekStartOf truncates t to the Monday of its ISO week, at midnight.
func WeekStartOf(t time.Time) time.Time {
	days := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// hourOf resolves a sequence's hour bucket from its representative member:
// the precomputed Hour when present, otherwise the timestamp's hour. The
// second return is false when no member yields an hour in 0..23.
func hourOf(members []Observation) (int, bool) {
	for _, o := range members {
		if o.Hour != nil {
			if *o.Hour >= 0 && *o.Hour <= 23 {
				return *o.Hour, true
			}
			continue
		}
		if o.Timestamp != nil {
			return o.Timestamp.Hour(), true
		}
	}
	return 0, false
}
