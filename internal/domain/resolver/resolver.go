// Package resolver partitions a year of month columns into contiguous spans,
// each judged by the threshold regime in effect during those months.
package resolver

import (
	"sort"
	"time"

	"github.com/okian/kpisync/internal/domain/model"
)

// Columns maps month tokens to column positions in one table. Average is 0
// when the table has no average column.
type Columns struct {
	Months  map[model.Month]int
	Average int
}

// Span is a run of columns sharing one regime.
type Span[R any] struct {
	Regime   R
	StartCol int
	EndCol   int
}

// Change is a dated regime change for a subject.
type Change[R any] struct {
	Subject   string
	Effective time.Time
	Regime    R
}

// Resolve returns the spans for subject in year, or nil when the caller
// should fall back to a single static regime: no history, no year, or no
// variation across the year. key decides when two regimes are the same.
func Resolve[R any](subject string, year int, cols Columns, history []Change[R], key func(R) string) []Span[R] {
	if year == 0 || len(cols.Months) == 0 {
		return nil
	}
	want := model.NameKey(subject)
	var matched []Change[R]
	for _, h := range history {
		if h.Effective.IsZero() || model.NameKey(h.Subject) != want {
			continue
		}
		matched = append(matched, h)
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Effective.Before(matched[j].Effective) })

	var spans []Span[R]
	lastKey := ""
	for _, m := range model.Months {
		col, ok := cols.Months[m]
		if !ok {
			continue
		}
		regime, ok := applicable(matched, model.MidMonth(year, m))
		if !ok {
			continue
		}
		k := key(regime)
		if len(spans) > 0 && k == lastKey {
			spans[len(spans)-1].EndCol = col
			continue
		}
		spans = append(spans, Span[R]{Regime: regime, StartCol: col, EndCol: col})
		lastKey = k
	}
	if len(spans) > 0 && cols.Average > 0 {
		spans[len(spans)-1].EndCol = cols.Average
	}
	if len(spans) <= 1 {
		return nil
	}
	return spans
}

// applicable picks the latest change effective on or before target from a
// list sorted by date.
func applicable[R any](sorted []Change[R], target time.Time) (R, bool) {
	var (
		out   R
		found bool
	)
	for _, h := range sorted {
		if h.Effective.After(target) {
			break
		}
		out, found = h.Regime, true
	}
	return out, found
}
