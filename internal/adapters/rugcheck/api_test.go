package rugcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/verify"
)

func TestToResultWorstRiskLevelWins(t *testing.T) {
	cases := []struct {
		name   string
		levels []string
		status string
		safe   bool
	}{
		{"clean", nil, verify.StatusGood, true},
		{"info only", []string{"info"}, verify.StatusGood, true},
		{"warn", []string{"info", "warn"}, verify.StatusWarning, false},
		{"danger beats warn", []string{"warn", "danger", "info"}, verify.StatusDanger, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := reportJSON{Creator: "creator111", Score: 1500}
			for _, lvl := range tc.levels {
				report.Risks = append(report.Risks, riskJSON{Name: "risk-" + lvl, Level: lvl})
			}

			res := report.toResult()
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.safe, res.Safe)
			assert.Len(t, res.Risks, len(tc.levels))
			assert.Equal(t, "rugcheck", res.Source)
			assert.Equal(t, 1500, res.Score)
			assert.Equal(t, "creator111", res.Deployer)
		})
	}
}

func bundleReport(holderPcts []float64, supply, circulating float64) reportJSON {
	var r reportJSON
	for _, pct := range holderPcts {
		r.TopHolders = append(r.TopHolders, holderJSON{Pct: pct})
	}
	r.Token.Supply = supply
	r.Token.Circulating = circulating
	return r
}

func TestDetectBundledSupply(t *testing.T) {
	c := &Client{supply: config.SupplyConfig{
		MaxTopHolderPct:     30,
		BundleDeltaPct:      1,
		MinCirculatingRatio: 0.1,
	}}

	cases := []struct {
		name    string
		report  reportJSON
		bundled bool
		topPct  float64
	}{
		{"no holders", bundleReport(nil, 0, 0), false, 0},
		{"dominant holder", bundleReport([]float64{45}, 0, 0), true, 45},
		{"twin wallets", bundleReport([]float64{20, 19.5}, 0, 0), true, 20},
		{"twin wallets but small stake", bundleReport([]float64{12, 11.8}, 0, 0), false, 12},
		{"starved float", bundleReport([]float64{10}, 1e9, 5e7), true, 10},
		{"healthy distribution", bundleReport([]float64{8, 5}, 1e9, 9e8), false, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bundled, topPct := c.detectBundledSupply(tc.report)
			assert.Equal(t, tc.bundled, bundled)
			assert.InDelta(t, tc.topPct, topPct, 0.0001)
		})
	}
}
