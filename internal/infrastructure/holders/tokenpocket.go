package holders

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const TokenPocketBaseURL = "https://preserver.mytokenpocket.vip"

// The provider is chain-specific; these identify BNB Smart Chain.
const (
	bscChainID      = 56
	bscBlockchainID = 12
)

// TokenPocketAdapter fetches holder distribution figures for BSC tokens.
type TokenPocketAdapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewTokenPocketAdapter(baseURL string, timeout time.Duration, logger *zap.Logger) *TokenPocketAdapter {
	if baseURL == "" {
		baseURL = TokenPocketBaseURL
	}
	return &TokenPocketAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetTop10Pct returns the share of total supply held by the ten largest
// wallets, rounded to 2 decimal places. It returns nil when the provider
// call fails, the response lacks either figure, or total supply is zero.
func (t *TokenPocketAdapter) GetTop10Pct(ctx context.Context, address, symbol string) *float64 {
	if address == "" || symbol == "" {
		return nil
	}

	info, err := t.holderInfo(ctx, address, symbol)
	if err != nil {
		t.logger.Warn("tokenpocket holder info failed", zap.String("address", address), zap.Error(err))
		return nil
	}

	top, ok := asFloat(info.Top110)
	if !ok {
		return nil
	}
	supply, ok := asFloat(info.TotalSupply)
	if !ok || supply == 0 {
		return nil
	}

	pct := math.Round(top/supply*100*100) / 100
	return &pct
}

type holderInfo struct {
	Top110      any `json:"top_1_10"`
	TotalSupply any `json:"total_supply"`
}

func (t *TokenPocketAdapter) holderInfo(ctx context.Context, address, symbol string) (*holderInfo, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("chain_id", strconv.Itoa(bscChainID))
	params.Set("blockchain_id", strconv.Itoa(bscBlockchainID))
	params.Set("ns", "ethereum")
	params.Set("bl_symbol", symbol)

	endpoint := t.baseURL + "/v1/token/holder_info?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
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

	var result struct {
		Data holderInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// asFloat coerces the provider's loosely typed numeric fields, which arrive
// as either JSON numbers or numeric strings.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}
