// Package sequence groups timestamped camera-trap records into event
// sequences. Burst photography produces many near-duplicate captures of one
// real-world visit; downstream counting and pagination treat each sequence,
// not each capture, as the unit of interest.
package sequence

import (
	"sort"
	"time"
)

// Item is a capture or observation record as seen by the grouper.
// An empty deployment or event ID stands for the absent (null) value and is
// itself a valid grouping key.
type Item interface {
	ItemID() string
	ItemTime() *time.Time
	Deployment() string
	Event() string
	Video() bool
}

// Sequence is a maximal run of same-deployment records modeling one physical
// visit. ID is the ID of the chronologically earliest member. StartTime and
// EndTime are nil when no member carries a timestamp.
type Sequence struct {
	ID        string
	Items     []Item
	StartTime *time.Time
	EndTime   *time.Time
}

// Result is the output of grouping one batch. Untimed holds records without a
// usable timestamp, in their original relative order; they never merge with
// each other or with timed records.
type Result struct {
	Sequences []Sequence
	Untimed   []Item
}

// Grouping selects how records partition into sequences: by wall-clock gap or
// by shared event ID. The zero value is ByGap with a zero threshold, which
// puts every timed record in its own sequence.
type Grouping struct {
	gap     time.Duration
	byEvent bool
}

// ByGap groups records whose consecutive timestamps are within gap of each
// other.
func ByGap(gap time.Duration) Grouping {
	return Grouping{gap: gap}
}

// ByEvent groups records sharing an event ID, ignoring timestamps and
// deployments.
func ByEvent() Grouping {
	return Grouping{byEvent: true}
}

// GroupingForGapSeconds maps a stored study setting to a Grouping. Studies
// persist the gap threshold in seconds, where 0 means the captures carry
// event IDs and should be grouped by those instead. The sentinel is resolved
// here, at the configuration boundary, so the engine itself has no hidden
// mode switch.
func GroupingForGapSeconds(secs int) Grouping {
	if secs == 0 {
		return ByEvent()
	}
	return ByGap(time.Duration(secs) * time.Second)
}

// ByEventID reports whether the grouping uses event IDs.
func (g Grouping) ByEventID() bool { return g.byEvent }

// Gap returns the gap threshold; zero in event mode.
func (g Grouping) Gap() time.Duration { return g.gap }

// Group partitions items according to g. It is total: nil or empty input
// yields an empty Result.
func Group(items []Item, g Grouping) Result {
	if g.byEvent {
		return GroupByEvent(items)
	}
	return GroupByGap(items, g.gap)
}

// GroupByGap partitions items into temporal sequences. Records without a
// timestamp go to Untimed. Timed records are partitioned by deployment,
// sorted ascending by (timestamp, ID), and split whenever the gap to the
// previous record exceeds the threshold. A video record is always a singleton
// sequence: it closes the sequence before it and a fresh one starts after it.
//
// Sequences are returned ordered by (StartTime, ID).
func GroupByGap(items []Item, gap time.Duration) Result {
	var res Result

	partitions := make(map[string][]Item)
	var keys []string
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.ItemTime() == nil {
			res.Untimed = append(res.Untimed, it)
			continue
		}
		dep := it.Deployment()
		if _, ok := partitions[dep]; !ok {
			keys = append(keys, dep)
		}
		partitions[dep] = append(partitions[dep], it)
	}

	for _, dep := range keys {
		part := partitions[dep]
		sortByTime(part)

		var cur []Item
		for _, it := range part {
			if len(cur) > 0 {
				prev := cur[len(cur)-1]
				delta := it.ItemTime().Sub(*prev.ItemTime())
				if delta > gap || it.Video() || prev.Video() {
					res.Sequences = append(res.Sequences, newSequence(cur))
					cur = nil
				}
			}
			cur = append(cur, it)
		}
		if len(cur) > 0 {
			res.Sequences = append(res.Sequences, newSequence(cur))
		}
	}

	sortSequences(res.Sequences)
	return res
}

// GroupByEvent partitions items solely by equal event ID, the empty ID
// included. Timed members come first in ascending order, untimed members
// after in input order. StartTime and EndTime derive from the timed members
// and are nil when there are none.
func GroupByEvent(items []Item) Result {
	groups := make(map[string][]Item)
	var keys []string
	for _, it := range items {
		if it == nil {
			continue
		}
		ev := it.Event()
		if _, ok := groups[ev]; !ok {
			keys = append(keys, ev)
		}
		groups[ev] = append(groups[ev], it)
	}

	var res Result
	for _, ev := range keys {
		members := groups[ev]
		var timed, untimed []Item
		for _, it := range members {
			if it.ItemTime() != nil {
				timed = append(timed, it)
			} else {
				untimed = append(untimed, it)
			}
		}
		sortByTime(timed)
		res.Sequences = append(res.Sequences, newSequence(append(timed, untimed...)))
	}

	sortSequences(res.Sequences)
	return res
}

// newSequence builds a Sequence from members already in final order.
func newSequence(members []Item) Sequence {
	seq := Sequence{ID: members[0].ItemID(), Items: members}
	for _, it := range members {
		t := it.ItemTime()
		if t == nil {
			continue
		}
		if seq.StartTime == nil {
			start := *t
			seq.StartTime = &start
		}
		end := *t
		seq.EndTime = &end
	}
	return seq
}

// sortByTime orders items ascending by timestamp; equal timestamps fall back
// to record ID so grouping is deterministic and agrees with the pagination
// cursor's resume key.
func sortByTime(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].ItemTime(), items[j].ItemTime()
		if !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return items[i].ItemID() < items[j].ItemID()
	})
}

// sortSequences orders sequences by (StartTime, ID); sequences without any
// timestamp sort last, by ID.
func sortSequences(seqs []Sequence) {
	sort.SliceStable(seqs, func(i, j int) bool {
		si, sj := seqs[i].StartTime, seqs[j].StartTime
		switch {
		case si == nil && sj == nil:
			return seqs[i].ID < seqs[j].ID
		case si == nil:
			return false
		case sj == nil:
			return true
		case !si.Equal(*sj):
			return si.Before(*sj)
		default:
			return seqs[i].ID < seqs[j].ID
		}
	})
}
