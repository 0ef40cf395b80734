package rugcheck

import (
	"time"

	"github.com/nexus-trading/warden/internal/verify"
)

// Wire types for the RugCheck report endpoint.

type riskJSON struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Score       int    `json:"score"`
	Level       string `json:"level"` // danger|warn|info
}

type holderJSON struct {
	Address string  `json:"address"`
	Amount  float64 `json:"uiAmount"`
	Pct     float64 `json:"pct"`
	Insider bool    `json:"insider"`
}

type reportJSON struct {
	Mint    string `json:"mint"`
	Creator string `json:"creator"`
	Token   struct {
		Supply      float64 `json:"supply"`
		Circulating float64 `json:"circulatingSupply"`
		Decimals    int     `json:"decimals"`
	} `json:"token"`
	Score        int          `json:"score"`
	Risks        []riskJSON   `json:"risks"`
	TopHolders   []holderJSON `json:"topHolders"`
	TotalHolders int          `json:"totalHolders"`
}

// toResult maps a report to a safety result. Status is the worst risk
// level present: any danger makes the report DANGER, any warn makes it
// WARNING, a clean report is GOOD. Only GOOD is safe.
func (r reportJSON) toResult() verify.Result {
	status := verify.StatusGood
	risks := make([]verify.RiskItem, 0, len(r.Risks))
	for _, risk := range r.Risks {
		risks = append(risks, verify.RiskItem{
			Name:        risk.Name,
			Level:       risk.Level,
			Description: risk.Description,
			Score:       risk.Score,
		})
		switch risk.Level {
		case "danger":
			status = verify.StatusDanger
		case "warn":
			if status == verify.StatusGood {
				status = verify.StatusWarning
			}
		}
	}

	return verify.Result{
		Safe:      status == verify.StatusGood,
		Status:    status,
		Score:     r.Score,
		Risks:     risks,
		Deployer:  r.Creator,
		Source:    "rugcheck",
		CheckedAt: time.Now(),
	}
}
