package analytics

import (
	"sort"
	"time"

	"github.com/camtrap/camtrap-agent/internal/sequence"
)

// SpeciesCount is a species total across all sequences.
type SpeciesCount struct {
	ScientificName string
	Count          int
}

// WeeklyPoint is one ISO-week bucket of the timeseries.
type WeeklyPoint struct {
	Date   time.Time
	Counts map[string]int
}

// Timeseries is the weekly view: per-week species counts plus the overall
// species totals for the charted period.
type Timeseries struct {
	Points     []WeeklyPoint
	AllSpecies []SpeciesCount
}

// HeatPoint is an aggregated count at one exact coordinate pair.
type HeatPoint struct {
	Latitude     float64
	Longitude    float64
	Count        int
	LocationName string
}

// HourActivity is one hour-of-day bucket; Counts holds only the species the
// caller selected.
type HourActivity struct {
	Hour   int
	Counts map[string]int
}

// SpeciesDistribution sums per-sequence species maxima across all sequences.
// Observations without a scientific name are excluded. The result is sorted
// by count descending, name ascending on ties. Nil input yields an empty
// slice.
func SpeciesDistribution(obs []Observation, g sequence.Grouping) []SpeciesCount {
	totals := make(map[string]int)
	for _, members := range observationSequences(obs, g) {
		for name, m := range speciesMaxima(members) {
			totals[name] += m
		}
	}

	out := make([]SpeciesCount, 0, len(totals))
	for name, total := range totals {
		if total == 0 {
			continue
		}
		out = append(out, SpeciesCount{ScientificName: name, Count: total})
	}
	sortSpeciesCounts(out)
	return out
}

// WeeklyTimeseries buckets sequences by the ISO week (Monday start) of their
// representative time and applies sequence-aware counting within each
// (week, species) cell. Sequences with no resolvable week are skipped.
// Points are sorted by date ascending.
func WeeklyTimeseries(obs []Observation, g sequence.Grouping) Timeseries {
	weeks := make(map[int64]*WeeklyPoint)
	totals := make(map[string]int)

	for _, members := range observationSequences(obs, g) {
		week, ok := weekOf(members)
		if !ok {
			continue
		}
		maxima := speciesMaxima(members)
		if len(maxima) == 0 {
			continue
		}

		key := week.Unix()
		point, ok := weeks[key]
		if !ok {
			point = &WeeklyPoint{Date: week, Counts: make(map[string]int)}
			weeks[key] = point
		}
		for name, m := range maxima {
			point.Counts[name] += m
			totals[name] += m
		}
	}

	ts := Timeseries{Points: make([]WeeklyPoint, 0, len(weeks))}
	for _, p := range weeks {
		ts.Points = append(ts.Points, *p)
	}
	sort.Slice(ts.Points, func(i, j int) bool {
		return ts.Points[i].Date.Before(ts.Points[j].Date)
	})

	ts.AllSpecies = make([]SpeciesCount, 0, len(totals))
	for name, total := range totals {
		ts.AllSpecies = append(ts.AllSpecies, SpeciesCount{ScientificName: name, Count: total})
	}
	sortSpeciesCounts(ts.AllSpecies)
	return ts
}

type pointKey struct {
	lat, lng float64
}

// LocationHeatmap aggregates sequence-aware counts per species at exact
// coordinate pairs. Observations missing either coordinate are skipped
// entirely; there is no fallback bucket. LocationName carries the first
// non-empty name seen at a point.
func LocationHeatmap(obs []Observation, g sequence.Grouping) map[string][]HeatPoint {
	type cell struct {
		count        int
		locationName string
	}
	cells := make(map[string]map[pointKey]*cell)

	for _, members := range observationSequences(obs, g) {
		// Per (species, point) maxima within this sequence.
		maxima := make(map[string]map[pointKey]int)
		names := make(map[pointKey]string)
		for _, o := range members {
			if o.ScientificName == "" || o.Latitude == nil || o.Longitude == nil {
				continue
			}
			key := pointKey{lat: *o.Latitude, lng: *o.Longitude}
			c := 0
			if o.Count != nil && *o.Count > 0 {
				c = *o.Count
			}
			byPoint, ok := maxima[o.ScientificName]
			if !ok {
				byPoint = make(map[pointKey]int)
				maxima[o.ScientificName] = byPoint
			}
			if cur, ok := byPoint[key]; !ok || c > cur {
				byPoint[key] = c
			}
			if names[key] == "" && o.LocationName != "" {
				names[key] = o.LocationName
			}
		}

		for name, byPoint := range maxima {
			points, ok := cells[name]
			if !ok {
				points = make(map[pointKey]*cell)
				cells[name] = points
			}
			for key, m := range byPoint {
				c, ok := points[key]
				if !ok {
					c = &cell{}
					points[key] = c
				}
				c.count += m
				if c.locationName == "" {
					c.locationName = names[key]
				}
			}
		}
	}

	out := make(map[string][]HeatPoint, len(cells))
	for name, points := range cells {
		list := make([]HeatPoint, 0, len(points))
		for key, c := range points {
			list = append(list, HeatPoint{
				Latitude:     key.lat,
				Longitude:    key.lng,
				Count:        c.count,
				LocationName: c.locationName,
			})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Count != list[j].Count {
				return list[i].Count > list[j].Count
			}
			if list[i].Latitude != list[j].Latitude {
				return list[i].Latitude < list[j].Latitude
			}
			return list[i].Longitude < list[j].Longitude
		})
		out[name] = list
	}
	return out
}

// HourlyActivity returns exactly 24 buckets, hours 0 through 23 in order,
// even for empty input. Only the selected species are populated. A
// sequence's hour comes from its representative member; sequences with no
// hour in range are skipped.
func HourlyActivity(obs []Observation, g sequence.Grouping, selected []string) []HourActivity {
	wanted := make(map[string]bool, len(selected))
	for _, name := range selected {
		if name != "" {
			wanted[name] = true
		}
	}

	out := make([]HourActivity, 24)
	for h := range out {
		out[h] = HourActivity{Hour: h, Counts: make(map[string]int, len(wanted))}
		for name := range wanted {
			out[h].Counts[name] = 0
		}
	}

	for _, members := range observationSequences(obs, g) {
		hour, ok := hourOf(members)
		if !ok {
			continue
		}
		for name, m := range speciesMaxima(members) {
			if wanted[name] {
				out[hour].Counts[name] += m
			}
		}
	}
	return out
}

func sortSpeciesCounts(list []SpeciesCount) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].ScientificName < list[j].ScientificName
	})
}
