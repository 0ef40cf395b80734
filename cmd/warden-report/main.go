// Command warden-report renders trading and analysis summaries from a
// warden database. It reads the same sqlite file the daemon writes, so
// it can run against a live instance or a copied snapshot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	dbPath := flag.String("db", "", "Database path (overrides the configured one)")
	days := flag.Int("days", 7, "Report window in days")
	asJSON := flag.Bool("json", false, "Emit raw JSON instead of tables")
	flag.Parse()

	path := *dbPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v (use --db to point at a database directly)\n", *configPath, err)
			os.Exit(1)
		}
		path = cfg.Storage.Path
	}

	db, err := sqlite.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to open database at %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	to := time.Now()
	from := to.Add(-time.Duration(*days) * 24 * time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	obs, err := sqlite.NewAnalysisStore(db).Observations(ctx, from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to read observations: %v\n", err)
		os.Exit(1)
	}
	trades, err := sqlite.NewJournalStore(db).Since(ctx, from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to read trade journal: %v\n", err)
		os.Exit(1)
	}

	analysis := journal.BuildAnalysisReport(obs, from, to)
	trading := journal.BuildReport(trades, from, to)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(map[string]any{
			"analysis": analysis,
			"trading":  trading,
		})
		return
	}

	out := os.Stdout
	fmt.Fprintf(out, "\nWARDEN report: %s to %s (%d days)\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"), *days)

	renderAnalysis(out, analysis)
	renderTrading(out, trading)
	renderFlagged(out, obs, 15)
}

func renderAnalysis(out io.Writer, r journal.AnalysisReport) {
	fmt.Fprintf(out, "\n=== MARKET OBSERVATIONS ===\n")
	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	table.Append("Pairs analyzed", strconv.Itoa(r.TotalAnalyzed))
	table.Append("Potential rugs", strconv.Itoa(r.PotentialRugs))
	table.Append("Significant pumps", strconv.Itoa(r.SignificantPumps))
	table.Append("CEX listings", strconv.Itoa(r.CexListings))
	table.Append("High activity pairs", strconv.Itoa(r.HighActivity))
	table.Append("Suspicious activities", strconv.Itoa(r.Suspicious))
	table.Append("Average 24h change", fmt.Sprintf("%.2f%%", r.AvgChange24h))
	table.Render()

	fmt.Fprintf(out, "\n=== VERIFICATION OUTCOMES ===\n")
	table = tablewriter.NewWriter(out)
	table.Header("Check", "Passed", "Failed")
	table.Append("Contract safety", strconv.Itoa(r.SafePassed), strconv.Itoa(r.SafeFailed))
	table.Append("Volume legitimacy", strconv.Itoa(r.VolumeLegit), strconv.Itoa(r.VolumeFake))
	table.Render()
	fmt.Fprintf(out, "  Decisions: %d opened, %d rejected\n", r.Opened, r.Rejected)
}

func renderTrading(out io.Writer, r journal.Report) {
	fmt.Fprintf(out, "\n=== TRADING RESULTS ===\n")
	if r.Trades == 0 {
		fmt.Fprintln(out, "  No closed trades in window")
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	table.Append("Closed trades", strconv.Itoa(r.Trades))
	table.Append("Confirmed", strconv.Itoa(r.Confirmed))
	table.Append("Forced / unconfirmed", strconv.Itoa(r.Forced))
	table.Append("Wins", strconv.Itoa(r.Wins))
	table.Append("Losses", strconv.Itoa(r.Losses))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", r.WinRate*100))
	table.Append("Avg PnL", r.AvgPnLPct.StringFixed(2)+"%")
	table.Append("Best PnL", r.BestPnLPct.StringFixed(2)+"%")
	table.Append("Worst PnL", r.WorstPnLPct.StringFixed(2)+"%")
	table.Append("Volume", "$"+r.VolumeUSD.StringFixed(2))
	table.Render()

	reasons := make([]string, 0, len(r.ByReason))
	for reason := range r.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "  %-14s %d\n", reason, r.ByReason[reason])
	}
	fmt.Fprintln(out, "  Forced closes are excluded from PnL: nothing was realized")
}

// renderFlagged lists the most recent observations that classified as
// anything other than normal trading.
func renderFlagged(out io.Writer, obs []journal.Observation, limit int) {
	flagged := make([]journal.Observation, 0, limit)
	for _, o := range obs {
		if o.EventType == string(market.EventNormalTrading) || o.EventType == "" {
			continue
		}
		flagged = append(flagged, o)
		if len(flagged) == limit {
			break
		}
	}
	if len(flagged) == 0 {
		return
	}

	fmt.Fprintf(out, "\n=== FLAGGED PAIRS (most recent %d) ===\n", len(flagged))
	table := tablewriter.NewWriter(out)
	table.Header("When", "Token", "Event", "24h %", "Liquidity", "Decision")
	for _, o := range flagged {
		table.Append(
			o.At.Format("01-02 15:04"),
			truncate(o.TokenName, 18),
			o.EventType,
			fmt.Sprintf("%+.1f", o.Change24h),
			fmt.Sprintf("$%.0f", o.Liquidity),
			o.Decision,
		)
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
