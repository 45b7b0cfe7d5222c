// Package views derives render-ready projections from fetched collections:
// transaction filtering, sorting and day grouping, running totals, and the
// wallet summary. Everything here is a pure function of its inputs; callers
// re-run the pipeline whenever the underlying data or the controls change.
package views

import (
	"sort"
	"strings"
	"time"

	"borsa/internal/core"
)

const (
	KindAll     Kind = "all"
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"

	RangeAll    Range = "all"
	RangeToday  Range = "today"
	RangeWeek   Range = "week"
	RangeMonth  Range = "month"
	RangeCustom Range = "custom"

	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"
)

type (
	Kind    string
	Range   string
	SortKey string

	// Filter is the full set of list controls. From and To hold the
	// custom range bounds as typed, ISO dates.
	Filter struct {
		Search string
		Kind   Kind
		Range  Range
		From   string
		To     string
	}

	// Lookup resolves the ids a transaction carries into the names the
	// search box matches against.
	Lookup struct {
		CategoryName map[int64]string
		PersonName   map[int64]string
	}

	// DayGroup is one calendar-day bucket of the rendered list.
	DayGroup struct {
		Day     time.Time
		Items   []core.Transaction
		Income  core.Money
		Expense core.Money
		Net     core.Money
	}

	Summary struct {
		Income  core.Money
		Expense core.Money
		Net     core.Money
	}

	WalletSummary struct {
		Balance core.Money
		Active  int
	}
)

// Apply returns the transactions surviving every active control. Kind
// splits on the amount sign alone. Date ranges are half-open [start, end)
// windows over EffectiveTime, so rows without a usable time only surface
// under an unbounded range.
func Apply(txs []core.Transaction, f Filter, lk Lookup, now time.Time) []core.Transaction {
	start, end, bounded := rangeBounds(f.Range, f.From, f.To, now)
	var out []core.Transaction
	for _, tx := range txs {
		if !matchesKind(tx, f.Kind) {
			continue
		}
		if bounded {
			at := tx.EffectiveTime()
			if at.Before(start) || !at.Before(end) {
				continue
			}
		}
		if !matchesSearch(tx, f.Search, lk) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func matchesKind(tx core.Transaction, k Kind) bool {
	switch k {
	case KindIncome:
		return tx.Amount.Cents >= 0
	case KindExpense:
		return tx.Amount.Cents < 0
	default:
		return true
	}
}

func matchesSearch(tx core.Transaction, query string, lk Lookup) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(tx.Note), q) {
		return true
	}
	if strings.Contains(strings.ToLower(tx.Counterparty), q) {
		return true
	}
	if tx.PersonID != nil && strings.Contains(strings.ToLower(lk.PersonName[*tx.PersonID]), q) {
		return true
	}
	return strings.Contains(strings.ToLower(lk.CategoryName[tx.CategoryID]), q)
}

// rangeBounds resolves a named range to a half-open [start, end) window
// around now. ok is false when the range puts no bound on the list.
func rangeBounds(r Range, from, to string, now time.Time) (time.Time, time.Time, bool) {
	loc := now.Location()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch r {
	case RangeToday:
		return dayStart, dayStart.AddDate(0, 0, 1), true
	case RangeWeek:
		// ISO week, Monday first
		back := (int(now.Weekday()) + 6) % 7
		start := dayStart.AddDate(0, 0, -back)
		return start, start.AddDate(0, 0, 7), true
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), true
	case RangeCustom:
		if from == "" {
			return time.Time{}, time.Time{}, false
		}
		start, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		if to == "" {
			// Missing end picks the single day
			to = from
		}
		endIncl, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil || endIncl.Before(start) {
			return time.Time{}, time.Time{}, false
		}
		return start, endIncl.AddDate(0, 0, 1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// Sort orders the list in place by the given key. Amounts compare by
// magnitude so large expenses and large incomes sort together. Descending
// swaps the comparison operands, keeping ties in input order either way.
func Sort(txs []core.Transaction, key SortKey, asc bool) {
	less := func(a, b core.Transaction) bool {
		if key == SortByAmount {
			return a.Amount.Abs().Cents < b.Amount.Abs().Cents
		}
		return a.EffectiveTime().Before(b.EffectiveTime())
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if asc {
			return less(txs[i], txs[j])
		}
		return less(txs[j], txs[i])
	})
}

// GroupByDay buckets an already-sorted list by the calendar day of each
// row's effective time. A new bucket opens whenever the day changes, so
// concatenating the buckets' items always reproduces the input sequence.
func GroupByDay(sorted []core.Transaction) []DayGroup {
	var groups []DayGroup
	for _, tx := range sorted {
		day := dayOf(tx.EffectiveTime())
		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(day) {
			groups = append(groups, DayGroup{Day: day})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, tx)
		if tx.Amount.Cents >= 0 {
			g.Income.Cents += tx.Amount.Cents
		} else {
			g.Expense.Cents -= tx.Amount.Cents
		}
	}
	for i := range groups {
		groups[i].Net = core.Money{Cents: groups[i].Income.Cents - groups[i].Expense.Cents}
	}
	return groups
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Totals sums the filtered list. Income and Expense are both reported as
// magnitudes; Net is their difference.
func Totals(txs []core.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		if tx.Amount.Cents >= 0 {
			s.Income.Cents += tx.Amount.Cents
		} else {
			s.Expense.Cents -= tx.Amount.Cents
		}
	}
	s.Net.Cents = s.Income.Cents - s.Expense.Cents
	return s
}

// SummarizeWallets totals balances across enabled wallets and counts
// them. Disabled wallets contribute nothing to either number.
func SummarizeWallets(wallets []core.Wallet) WalletSummary {
	var ws WalletSummary
	for _, w := range wallets {
		if !w.IsEnabled {
			continue
		}
		ws.Balance.Cents += w.Balance.Cents
		ws.Active++
	}
	return ws
}
