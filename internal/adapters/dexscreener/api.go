package dexscreener

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
)

// Wire types for the DexScreener REST API.

type searchResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []pairJSON `json:"pairs"`
}

type pairsResponse struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pair          *pairJSON  `json:"pair"`
	Pairs         []pairJSON `json:"pairs"`
}

type tokenJSON struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type txnWindow struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type pairJSON struct {
	ChainID     string    `json:"chainId"`
	DexID       string    `json:"dexId"`
	PairAddress string    `json:"pairAddress"`
	BaseToken   tokenJSON `json:"baseToken"`
	QuoteToken  tokenJSON `json:"quoteToken"`
	PriceUSD    string    `json:"priceUsd"`
	Txns        struct {
		M5  txnWindow `json:"m5"`
		H1  txnWindow `json:"h1"`
		H6  txnWindow `json:"h6"`
		H24 txnWindow `json:"h24"`
	} `json:"txns"`
	Volume struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity"`
	FDV           float64  `json:"fdv"`
	PairCreatedAt int64    `json:"pairCreatedAt"` // unix millis
	Labels        []string `json:"labels"`
}

func (p pairJSON) toPair() market.Pair {
	price, err := decimal.NewFromString(p.PriceUSD)
	if err != nil {
		price = decimal.Zero
	}

	var createdAt time.Time
	if p.PairCreatedAt > 0 {
		createdAt = time.UnixMilli(p.PairCreatedAt)
	}

	return market.Pair{
		Chain:          p.ChainID,
		DexID:          p.DexID,
		Address:        p.PairAddress,
		BaseToken:      market.Token(p.BaseToken),
		QuoteToken:     market.Token(p.QuoteToken),
		PriceUSD:       price,
		PriceChange1h:  p.PriceChange.H1,
		PriceChange24h: p.PriceChange.H24,
		Volume5m:       p.Volume.M5,
		Volume1h:       p.Volume.H1,
		Volume6h:       p.Volume.H6,
		Volume24h:      p.Volume.H24,
		LiquidityUSD:   p.Liquidity.USD,
		Buys24h:        p.Txns.H24.Buys,
		Sells24h:       p.Txns.H24.Sells,
		Labels:         p.Labels,
		CreatedAt:      createdAt,
		ObservedAt:     time.Now(),
	}
}
