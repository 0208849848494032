package domain

import (
	"math"
	"strings"
	"time"
)

// TickerRecord is one exchange 24h ticker snapshot for a trading pair.
type TickerRecord struct {
	Symbol         string  `json:"symbol"`
	QuoteVolume    float64 `json:"quote_volume"`
	LastPrice      float64 `json:"last_price"`
	PriceChangePct float64 `json:"price_change_pct"`
}

// CandidateToken is the record threaded through the screening pipeline.
// Nullable numeric fields are pointers: nil means the provider never
// reported a value, which is different from an explicit zero.
type CandidateToken struct {
	Symbol              string   `json:"symbol"`
	ExchangeSymbol      string   `json:"exchange_symbol"`
	ExchangeVolume24h   float64  `json:"exchange_volume_24h"`
	ExchangePrice       float64  `json:"exchange_price"`
	ExchangePriceChange float64  `json:"exchange_price_change"`
	Name                string   `json:"name"`
	Chain               string   `json:"chain"`
	ContractAddress     string   `json:"address"`
	MarketCap           *float64 `json:"market_cap"`
	Price               *float64 `json:"price"`
	PriceChange24h      *float64 `json:"price_change_24h"`
	Volume24h           *float64 `json:"volume_24h"`
	Top10HoldersPct     *float64 `json:"top10_holders_pct"`
}

// PairInfo is the parsed view of the best market-data pair for a token.
type PairInfo struct {
	ContractAddress string
	Symbol          string
	Name            string
	Chain           string
	MarketCap       *float64
	Price           *float64
	PriceChange24h  *float64
	Volume24h       *float64
}

// FilterCriteria holds the active thresholds for a single screening run.
// Construct it with NewFilterCriteria and pass it by value; it is never
// mutated after construction.
type FilterCriteria struct {
	MinMarketCap        float64
	MaxMarketCap        float64
	MinTop10HoldersPct  *float64
	MinExchangeVolume   *float64
	CheckExchangeVolume bool
}

// NewFilterCriteria applies the defaults: a non-positive maxMarketCap means
// "no upper bound". Nil thresholds disable the corresponding check.
func NewFilterCriteria(minMarketCap, maxMarketCap float64, minTop10HoldersPct, minExchangeVolume *float64, checkExchangeVolume bool) FilterCriteria {
	if maxMarketCap <= 0 {
		maxMarketCap = math.Inf(1)
	}
	if minMarketCap < 0 {
		minMarketCap = 0
	}
	return FilterCriteria{
		MinMarketCap:        minMarketCap,
		MaxMarketCap:        maxMarketCap,
		MinTop10HoldersPct:  minTop10HoldersPct,
		MinExchangeVolume:   minExchangeVolume,
		CheckExchangeVolume: checkExchangeVolume,
	}
}

// ScreeningResult is the ranked outcome of one screening run, sorted by
// market cap descending.
type ScreeningResult struct {
	Tokens     []CandidateToken `json:"tokens"`
	ScreenedAt time.Time        `json:"screened_at"`
}

// QuoteSuffix is the quote currency the ticker universe is denominated in.
const QuoteSuffix = "USDT"

// BaseSymbol derives the token symbol from an exchange pair symbol by
// stripping the quote suffix ("BTCUSDT" -> "BTC", "BTCUSD" -> "BTC").
func BaseSymbol(exchangeSymbol string) string {
	s := strings.TrimSuffix(exchangeSymbol, QuoteSuffix)
	return strings.TrimSuffix(s, "USD")
}

// IsBSCChain reports whether a market-data chain id is the BNB Smart Chain,
// the only chain the holder-concentration provider can answer for.
func IsBSCChain(chain string) bool {
	switch strings.ToLower(chain) {
	case "bsc", "bnbchain":
		return true
	}
	return false
}
