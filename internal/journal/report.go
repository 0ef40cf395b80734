package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report holds aggregate statistics over a set of journal entries.
// Forced, unconfirmed closes are counted separately and excluded from
// the PnL figures: nothing was realized.
type Report struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Trades    int       `json:"trades"`
	Confirmed int       `json:"confirmed"`
	Forced    int       `json:"forced"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	WinRate   float64   `json:"win_rate"` // fraction of confirmed trades [0, 1]

	AvgPnLPct   decimal.Decimal `json:"avg_pnl_pct"`
	BestPnLPct  decimal.Decimal `json:"best_pnl_pct"`
	WorstPnLPct decimal.Decimal `json:"worst_pnl_pct"`
	VolumeUSD   decimal.Decimal `json:"volume_usd"`

	ByReason map[string]int `json:"by_reason"`
}

// BuildReport computes a report from entries. Deterministic, no I/O.
func BuildReport(entries []Entry, from, to time.Time) Report {
	r := Report{
		From:     from,
		To:       to,
		ByReason: make(map[string]int),
	}
	if len(entries) == 0 {
		return r
	}

	r.Trades = len(entries)
	sum := decimal.Zero
	first := true

	for _, e := range entries {
		r.ByReason[e.Reason]++
		r.VolumeUSD = r.VolumeUSD.Add(e.AmountUSD)

		if e.Forced || !e.Confirmed {
			r.Forced++
			continue
		}
		r.Confirmed++

		if e.PnLPct.IsPositive() {
			r.Wins++
		} else {
			r.Losses++
		}
		sum = sum.Add(e.PnLPct)

		if first {
			r.BestPnLPct = e.PnLPct
			r.WorstPnLPct = e.PnLPct
			first = false
			continue
		}
		if e.PnLPct.GreaterThan(r.BestPnLPct) {
			r.BestPnLPct = e.PnLPct
		}
		if e.PnLPct.LessThan(r.WorstPnLPct) {
			r.WorstPnLPct = e.PnLPct
		}
	}

	if r.Confirmed > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Confirmed)
		r.AvgPnLPct = sum.Div(decimal.NewFromInt(int64(r.Confirmed)))
	}
	return r
}
