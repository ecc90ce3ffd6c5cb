package gallery

import (
	"context"
	"time"

	"github.com/camtrap/camtrap-agent/internal/sequence"
)

const (
	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit = 50

	// batchFactor sizes the candidate fetch: comfortably more records than
	// limit sequences' worth, so most pages resolve in one round trip.
	batchFactor = 8

	// maxBatchGrowth bounds how often one page request may re-fetch with a
	// doubled batch while chasing a still-open sequence.
	maxBatchGrowth = 4
)

// Source supplies catalog media in scan order. TimedMedia returns up to
// limit records with a timestamp, ordered ascending by (timestamp, ID) and
// strictly after the given position; a nil after means from the start.
// UntimedMedia returns records without a timestamp in a stable order.
type Source interface {
	TimedMedia(ctx context.Context, after *time.Time, afterID string, limit int) ([]sequence.Item, error)
	UntimedMedia(ctx context.Context, offset, limit int) ([]sequence.Item, error)
}

// Page is one gallery page: complete sequences plus the token for the next
// page, empty when the scan is exhausted.
type Page struct {
	Sequences  []sequence.Sequence
	NextCursor string
}

// Paginator pages a Source into provably complete sequences. It holds no
// per-request state and is safe for concurrent use.
type Paginator struct {
	src      Source
	grouping sequence.Grouping
}

func NewPaginator(src Source, g sequence.Grouping) *Paginator {
	return &Paginator{src: src, grouping: g}
}

// Page returns the page after token; an empty token starts from the
// beginning. A sequence is only returned when its completeness is proven: a
// later record outside the gap window appeared in the same batch, or the
// batch reached the true end of the data. The trailing still-open sequence is
// deferred to the next call.
func (p *Paginator) Page(ctx context.Context, token string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	cur := Cursor{Phase: PhaseTimestamped}
	if token != "" {
		c, err := DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		cur = c
	}

	page := &Page{}
	untimedOffset := cur.Offset

	if cur.Phase == PhaseTimestamped {
		exhausted, err := p.timedPage(ctx, cur, limit, page)
		if err != nil {
			return nil, err
		}
		if !exhausted {
			return page, nil
		}
		// No timed records remain beyond the cursor: switch phases.
		untimedOffset = 0
	}

	if err := p.untimedFill(ctx, untimedOffset, limit, page); err != nil {
		return nil, err
	}
	return page, nil
}

// scanPos is a total order over timed records: ascending timestamp, record ID
// breaking ties. It matches both the Source scan order and the grouping
// engine's sort.
type scanPos struct {
	t  time.Time
	id string
}

func posOf(it sequence.Item) scanPos {
	return scanPos{t: *it.ItemTime(), id: it.ItemID()}
}

func (a scanPos) before(b scanPos) bool {
	if !a.t.Equal(b.t) {
		return a.t.Before(b.t)
	}
	return a.id < b.id
}

func firstPos(s sequence.Sequence) scanPos { return posOf(s.Items[0]) }
func lastPos(s sequence.Sequence) scanPos  { return posOf(s.Items[len(s.Items)-1]) }

// timedPage fills page from the timestamped scan. It reports true when the
// timed phase is exhausted and the caller may continue into the untimed
// phase.
func (p *Paginator) timedPage(ctx context.Context, cur Cursor, limit int, page *Page) (bool, error) {
	batchSize := limit * batchFactor

	for attempt := 0; ; attempt++ {
		force := attempt >= maxBatchGrowth

		items, err := p.src.TimedMedia(ctx, cur.Time, cur.MediaID, batchSize)
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			return true, nil
		}
		atEnd := len(items) < batchSize

		seqs := sequence.Group(items, p.grouping).Sequences
		maxTime := *items[len(items)-1].ItemTime()

		n := 0
		for n < len(seqs) && n < limit && p.complete(seqs[n], maxTime, atEnd) {
			n++
		}

		if n < len(seqs) {
			n = trimToCut(seqs, n)
		}

		if n == 0 {
			// The batch's leading sequence is still open. Widen the window
			// before giving up.
			if !force {
				batchSize *= 2
				continue
			}
			// A burst outlasting the widest batch. Return the open
			// sequence's head rather than stalling, truncated so it never
			// reaches past a deferred sequence's first record; records an
			// interleaved deployment shot inside the burst stay beyond the
			// cursor and come back on a later page.
			head := seqs[0]
			if len(seqs) > 1 {
				head = truncateBefore(head, firstPos(seqs[1]))
			}
			page.Sequences = append(page.Sequences, head)
			last := lastPos(head)
			t := last.t
			page.NextCursor = Cursor{Phase: PhaseTimestamped, Time: &t, MediaID: last.id}.Encode()
			return false, nil
		}

		page.Sequences = append(page.Sequences, seqs[:n]...)

		if atEnd && n == len(seqs) {
			return true, nil
		}

		last := lastPos(seqs[0])
		for _, s := range seqs[1:n] {
			if last.before(lastPos(s)) {
				last = lastPos(s)
			}
		}
		t := last.t
		page.NextCursor = Cursor{Phase: PhaseTimestamped, Time: &t, MediaID: last.id}.Encode()
		return false, nil
	}
}

// complete reports whether a sequence is provably closed within this batch: a
// later record outside the gap window was observed, or the batch reached the
// end of the data. In event mode any strictly later record closes the group,
// as events are time-contiguous.
func (p *Paginator) complete(s sequence.Sequence, maxTime time.Time, atEnd bool) bool {
	if atEnd {
		return true
	}
	if p.grouping.ByEventID() {
		return maxTime.After(*s.EndTime)
	}
	return maxTime.Sub(*s.EndTime) > p.grouping.Gap()
}

// trimToCut shrinks the taken prefix seqs[:n] until every taken item lies
// strictly before the first item of the first deferred sequence. Sequences
// from different deployments can interleave in time; returning one whose tail
// crosses the resume position would duplicate records on the next page.
func trimToCut(seqs []sequence.Sequence, n int) int {
	cut := firstPos(seqs[n])
	for {
		trimmed := false
		for i := 0; i < n; i++ {
			if !lastPos(seqs[i]).before(cut) {
				cut = firstPos(seqs[i])
				n = i
				trimmed = true
				break
			}
		}
		if !trimmed {
			return n
		}
	}
}

// truncateBefore returns s cut down to the items strictly before pos, with
// its end time recomputed. Sequences are ordered by their first item, so the
// leading sequence always keeps at least one item.
func truncateBefore(s sequence.Sequence, pos scanPos) sequence.Sequence {
	k := len(s.Items)
	for k > 0 && !posOf(s.Items[k-1]).before(pos) {
		k--
	}
	items := s.Items[:k]
	end := *items[len(items)-1].ItemTime()
	return sequence.Sequence{
		ID:        s.ID,
		Items:     items,
		StartTime: s.StartTime,
		EndTime:   &end,
	}
}

// untimedFill appends untimed records as singleton sequences until the page
// is full, then derives the next cursor from the consumed offset.
func (p *Paginator) untimedFill(ctx context.Context, offset, limit int, page *Page) error {
	remaining := limit - len(page.Sequences)
	if remaining < 0 {
		remaining = 0
	}

	// Fetch one extra record to learn whether another page exists.
	items, err := p.src.UntimedMedia(ctx, offset, remaining+1)
	if err != nil {
		return err
	}

	more := len(items) > remaining
	if more {
		items = items[:remaining]
	}

	for _, it := range items {
		page.Sequences = append(page.Sequences, sequence.Sequence{
			ID:    it.ItemID(),
			Items: []sequence.Item{it},
		})
	}

	if more {
		page.NextCursor = Cursor{Phase: PhaseUntimed, Offset: offset + len(items)}.Encode()
	} else {
		page.NextCursor = ""
	}
	return nil
}
