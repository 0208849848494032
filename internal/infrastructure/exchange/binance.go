package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vitos/crypto_token_screener/internal/domain"
	"go.uber.org/zap"
)

const BinanceFuturesBaseURL = "https://fapi.binance.com"

// BinanceAdapter fetches the 24h ticker universe from Binance USDT-M futures.
// The first successful fetch is memoized for the lifetime of the adapter so
// that concurrent callers within one screening run share a single request.
type BinanceAdapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string]domain.TickerRecord
}

func NewBinanceAdapter(baseURL string, timeout time.Duration, logger *zap.Logger) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceFuturesBaseURL
	}
	return &BinanceAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// FetchAll returns all USDT-quoted tickers keyed by exchange symbol. On any
// transport or decode failure it returns an empty map; the failure is logged,
// not raised, and is not memoized so the next run can retry.
func (b *BinanceAdapter) FetchAll(ctx context.Context) map[string]domain.TickerRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cache != nil {
		return b.cache
	}

	tickers, err := b.fetchTickers(ctx)
	if err != nil {
		b.logger.Warn("binance ticker fetch failed", zap.Error(err))
		return map[string]domain.TickerRecord{}
	}

	b.cache = tickers
	b.logger.Info("binance tickers fetched", zap.Int("count", len(tickers)))
	return tickers
}

// Invalidate clears the memoized universe so the next FetchAll hits the
// provider again. Call it between independent screening runs.
func (b *BinanceAdapter) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = nil
}

func (b *BinanceAdapter) fetchTickers(ctx context.Context) (map[string]domain.TickerRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/fapi/v1/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode}
	}

	var raw []struct {
		Symbol             string `json:"symbol"`
		QuoteVolume        string `json:"quoteVolume"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	result := make(map[string]domain.TickerRecord, len(raw))
	for _, t := range raw {
		if !strings.HasSuffix(t.Symbol, domain.QuoteSuffix) {
			continue
		}
		volume, _ := strconv.ParseFloat(t.QuoteVolume, 64)
		price, _ := strconv.ParseFloat(t.LastPrice, 64)
		change, _ := strconv.ParseFloat(t.PriceChangePercent, 64)

		result[t.Symbol] = domain.TickerRecord{
			Symbol:         t.Symbol,
			QuoteVolume:    volume,
			LastPrice:      price,
			PriceChangePct: change,
		}
	}

	return result, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}
