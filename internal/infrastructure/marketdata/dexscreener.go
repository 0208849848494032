package marketdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/crypto_token_screener/internal/domain"
	"go.uber.org/zap"
)

const DexScreenerBaseURL = "https://api.dexscreener.com"

// Pair is one trading pair from the DexScreener search response. Numeric
// fields the provider may omit are pointers so absence survives decoding.
type Pair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
		Name    string `json:"name"`
	} `json:"baseToken"`
	PriceUsd string   `json:"priceUsd"`
	Fdv      *float64 `json:"fdv"`
	Volume   struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
}

// DexScreenerAdapter looks up token market data via the DexScreener search API.
type DexScreenerAdapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewDexScreenerAdapter(baseURL string, timeout time.Duration, logger *zap.Logger) *DexScreenerAdapter {
	if baseURL == "" {
		baseURL = DexScreenerBaseURL
	}
	return &DexScreenerAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Search returns the pairs matching a query. Queries shorter than 2
// characters short-circuit to an empty result without a network call, and
// any transport failure also yields an empty result.
func (d *DexScreenerAdapter) Search(ctx context.Context, query string) []Pair {
	if len(strings.TrimSpace(query)) < 2 {
		return nil
	}

	endpoint := d.baseURL + "/latest/dex/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("dexscreener search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.logger.Warn("dexscreener search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if resp.StatusCode >= 400 {
		// 400 means the query itself was unsearchable; not worth logging.
		if resp.StatusCode != http.StatusBadRequest {
			d.logger.Warn("dexscreener search failed",
				zap.String("query", query), zap.Int("status", resp.StatusCode))
		}
		return nil
	}

	var result struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		d.logger.Warn("dexscreener decode failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	return result.Pairs
}

// BestPair picks the pair to enrich from: BSC pairs beat all others, then
// the highest fully-diluted valuation wins, and ties keep the first-seen
// pair so the choice is stable across runs.
func BestPair(pairs []Pair) (Pair, bool) {
	if len(pairs) == 0 {
		return Pair{}, false
	}

	best := -1
	bestBSC := false
	bestFdv := 0.0
	for i, p := range pairs {
		onBSC := domain.IsBSCChain(p.ChainID)
		fdv := 0.0
		if p.Fdv != nil {
			fdv = *p.Fdv
		}
		switch {
		case best == -1:
		case onBSC != bestBSC:
			if !onBSC {
				continue
			}
		case fdv <= bestFdv:
			continue
		}
		best, bestBSC, bestFdv = i, onBSC, fdv
	}

	return pairs[best], true
}

// ParsePair maps a provider pair onto the candidate-token field set.
// Absent provider fields stay nil; an explicitly reported zero is kept.
func ParsePair(p Pair) domain.PairInfo {
	info := domain.PairInfo{
		ContractAddress: p.BaseToken.Address,
		Symbol:          p.BaseToken.Symbol,
		Name:            p.BaseToken.Name,
		Chain:           p.ChainID,
		MarketCap:       p.Fdv,
		PriceChange24h:  p.PriceChange.H24,
		Volume24h:       p.Volume.H24,
	}
	if price, err := strconv.ParseFloat(p.PriceUsd, 64); err == nil {
		info.Price = &price
	}
	return info
}

// Lookup searches for a symbol, selects the best matching pair and returns
// its parsed fields, or nil when nothing matched.
func (d *DexScreenerAdapter) Lookup(ctx context.Context, symbol string) *domain.PairInfo {
	pairs := d.Search(ctx, symbol)
	best, ok := BestPair(pairs)
	if !ok {
		return nil
	}
	info := ParsePair(best)
	return &info
}
