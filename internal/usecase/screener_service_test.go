package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_token_screener/internal/domain"
	"github.com/vitos/crypto_token_screener/internal/usecase"
	"go.uber.org/zap"
)

// MockTickerSource
type MockTickerSource struct {
	mu            sync.Mutex
	Tickers       map[string]domain.TickerRecord
	Fetches       int
	Invalidations int
}

func (m *MockTickerSource) FetchAll(ctx context.Context) map[string]domain.TickerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetches++
	return m.Tickers
}

func (m *MockTickerSource) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidations++
}

// MockMarketData maps symbol -> pair info; nil entry means no match.
type MockMarketData struct {
	Pairs map[string]*domain.PairInfo
}

func (m *MockMarketData) Lookup(ctx context.Context, symbol string) *domain.PairInfo {
	return m.Pairs[symbol]
}

// MockHolderSource maps contract address -> top-10 pct.
type MockHolderSource struct {
	mu    sync.Mutex
	Pct   map[string]*float64
	Calls int
}

func (m *MockHolderSource) GetTop10Pct(ctx context.Context, address, symbol string) *float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Pct[address]
}

// MockTokenRepo
type MockTokenRepo struct {
	mu      sync.Mutex
	Upserts [][]domain.CandidateToken
	Err     error
}

func (m *MockTokenRepo) UpsertTokens(ctx context.Context, tokens []domain.CandidateToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts = append(m.Upserts, tokens)
	return m.Err
}

func (m *MockTokenRepo) ListTokens(ctx context.Context, limit int) ([]domain.CandidateToken, error) {
	return nil, nil
}

// MockSnapshotRepo
type MockSnapshotRepo struct {
	mu    sync.Mutex
	Saved []*domain.ScreeningResult
	Err   error
}

func (m *MockSnapshotRepo) SaveSnapshot(ctx context.Context, result *domain.ScreeningResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, result)
	return m.Err
}

func (m *MockSnapshotRepo) LoadSnapshot(ctx context.Context) (*domain.ScreeningResult, error) {
	return nil, nil
}

func fp(v float64) *float64 { return &v }

type fixture struct {
	tickers    *MockTickerSource
	marketData *MockMarketData
	holders    *MockHolderSource
	tokenRepo  *MockTokenRepo
	snapshots  *MockSnapshotRepo
	service    *usecase.ScreenerService
}

func newFixture(tickers map[string]domain.TickerRecord, pairs map[string]*domain.PairInfo, pct map[string]*float64) *fixture {
	f := &fixture{
		tickers:    &MockTickerSource{Tickers: tickers},
		marketData: &MockMarketData{Pairs: pairs},
		holders:    &MockHolderSource{Pct: pct},
		tokenRepo:  &MockTokenRepo{},
		snapshots:  &MockSnapshotRepo{},
	}
	f.service = usecase.NewScreenerService(
		f.tickers, f.marketData, f.holders, f.tokenRepo, f.snapshots, zap.NewNop(), 3)
	return f
}

func TestRun_FullPipeline(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000, LastPrice: 1.2, PriceChangePct: 3.1},
		},
		map[string]*domain.PairInfo{
			"FOO": {
				ContractAddress: "0xabc",
				Symbol:          "FOO",
				Name:            "Foo Token",
				Chain:           "bsc",
				MarketCap:       fp(50_000_000),
				Price:           fp(1.19),
			},
		},
		map[string]*float64{"0xabc": fp(60.0)},
	)

	criteria := domain.NewFilterCriteria(10_000_000, 100_000_000, fp(50), fp(1_000_000), true)
	result, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)

	token := result.Tokens[0]
	assert.Equal(t, "FOO", token.Symbol)
	assert.Equal(t, "FOOUSDT", token.ExchangeSymbol)
	assert.Equal(t, "0xabc", token.ContractAddress)
	require.NotNil(t, token.MarketCap)
	assert.Equal(t, 50_000_000.0, *token.MarketCap)
	require.NotNil(t, token.Top10HoldersPct)
	assert.Equal(t, 60.0, *token.Top10HoldersPct)

	require.Len(t, f.tokenRepo.Upserts, 1)
	require.Len(t, f.snapshots.Saved, 1)
	assert.Equal(t, result.Tokens, f.snapshots.Saved[0].Tokens)
	assert.Equal(t, 1, f.tickers.Invalidations)
}

func TestRun_NoMarketDataMatchExcludesToken(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000, LastPrice: 1.2},
		},
		map[string]*domain.PairInfo{}, // no pairs for FOO
		nil,
	)

	criteria := domain.NewFilterCriteria(10_000_000, 100_000_000, fp(50), fp(1_000_000), true)
	result, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)
	assert.Empty(t, result.Tokens)

	// Nothing to upsert, but the snapshot is still overwritten.
	assert.Empty(t, f.tokenRepo.Upserts)
	require.Len(t, f.snapshots.Saved, 1)
	assert.Empty(t, f.snapshots.Saved[0].Tokens)
}

func TestRun_EmptyUniverseAbortsWithoutPersisting(t *testing.T) {
	f := newFixture(map[string]domain.TickerRecord{}, nil, nil)

	result, err := f.service.Run(context.Background(), domain.NewFilterCriteria(0, 0, nil, nil, false))
	require.NoError(t, err)
	assert.Empty(t, result.Tokens)
	assert.Empty(t, f.tokenRepo.Upserts)
	assert.Empty(t, f.snapshots.Saved)
}

func TestRun_InvertedCapRangeYieldsEmptyResult(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000, LastPrice: 1.2},
		},
		map[string]*domain.PairInfo{
			"FOO": {ContractAddress: "0xabc", Chain: "bsc", MarketCap: fp(50_000_000)},
		},
		nil,
	)

	criteria := domain.NewFilterCriteria(100_000_000, 10_000_000, nil, nil, false)
	result, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)
	assert.Empty(t, result.Tokens)
}

func TestRun_SortedByMarketCapDescendingAndDeterministic(t *testing.T) {
	tickers := map[string]domain.TickerRecord{
		"AAAUSDT": {Symbol: "AAAUSDT", QuoteVolume: 2_000_000, LastPrice: 1},
		"BBBUSDT": {Symbol: "BBBUSDT", QuoteVolume: 3_000_000, LastPrice: 2},
		"CCCUSDT": {Symbol: "CCCUSDT", QuoteVolume: 4_000_000, LastPrice: 3},
	}
	pairs := map[string]*domain.PairInfo{
		"AAA": {ContractAddress: "0xaaa", Chain: "eth", MarketCap: fp(20_000_000)},
		"BBB": {ContractAddress: "0xbbb", Chain: "bsc", MarketCap: fp(80_000_000)},
		"CCC": {ContractAddress: "0xccc", Chain: "eth", MarketCap: fp(40_000_000)},
	}
	criteria := domain.NewFilterCriteria(0, 0, nil, nil, false)

	f := newFixture(tickers, pairs, nil)
	first, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)
	require.Len(t, first.Tokens, 3)

	for i := 1; i < len(first.Tokens); i++ {
		assert.GreaterOrEqual(t, *first.Tokens[i-1].MarketCap, *first.Tokens[i].MarketCap)
	}
	assert.Equal(t, "BBB", first.Tokens[0].Symbol)
	assert.Equal(t, "CCC", first.Tokens[1].Symbol)
	assert.Equal(t, "AAA", first.Tokens[2].Symbol)

	second, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, first.Tokens, second.Tokens)
}

func TestRun_HolderThresholdExcludesNilAndNonBSC(t *testing.T) {
	tickers := map[string]domain.TickerRecord{
		"AAAUSDT": {Symbol: "AAAUSDT", QuoteVolume: 2_000_000},
		"BBBUSDT": {Symbol: "BBBUSDT", QuoteVolume: 2_000_000},
		"CCCUSDT": {Symbol: "CCCUSDT", QuoteVolume: 2_000_000},
		"DDDUSDT": {Symbol: "DDDUSDT", QuoteVolume: 2_000_000},
	}
	pairs := map[string]*domain.PairInfo{
		"AAA": {ContractAddress: "0xaaa", Chain: "eth", MarketCap: fp(30_000_000)},     // non-BSC: no holder data
		"BBB": {ContractAddress: "0xbbb", Chain: "bsc", MarketCap: fp(30_000_000)},     // below threshold
		"CCC": {ContractAddress: "0xccc", Chain: "bsc", MarketCap: fp(30_000_000)},     // provider fails -> nil
		"DDD": {ContractAddress: "0xddd", Chain: "bnbchain", MarketCap: fp(30_000_000)}, // passes
	}
	pct := map[string]*float64{
		"0xbbb": fp(40.0),
		"0xddd": fp(75.0),
	}

	f := newFixture(tickers, pairs, pct)
	criteria := domain.NewFilterCriteria(0, 0, fp(50), nil, false)
	result, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)

	require.Len(t, result.Tokens, 1)
	assert.Equal(t, "DDD", result.Tokens[0].Symbol)

	// Only the three BSC tokens reach the holder provider.
	assert.Equal(t, 3, f.holders.Calls)
}

func TestRun_HolderStageSkippedWithoutThreshold(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000},
		},
		map[string]*domain.PairInfo{
			"FOO": {ContractAddress: "0xabc", Chain: "bsc", MarketCap: fp(50_000_000)},
		},
		map[string]*float64{"0xabc": fp(60.0)},
	)

	result, err := f.service.Run(context.Background(), domain.NewFilterCriteria(0, 0, nil, nil, false))
	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)

	assert.Equal(t, 0, f.holders.Calls)
	assert.Nil(t, result.Tokens[0].Top10HoldersPct)
}

func TestRun_VolumePreFilter(t *testing.T) {
	tickers := map[string]domain.TickerRecord{
		"BIGUSDT": {Symbol: "BIGUSDT", QuoteVolume: 5_000_000},
		"LOWUSDT": {Symbol: "LOWUSDT", QuoteVolume: 100_000},
	}
	pairs := map[string]*domain.PairInfo{
		"BIG": {ContractAddress: "0xbig", Chain: "bsc", MarketCap: fp(50_000_000)},
		"LOW": {ContractAddress: "0xlow", Chain: "bsc", MarketCap: fp(50_000_000)},
	}

	f := newFixture(tickers, pairs, nil)
	checked := domain.NewFilterCriteria(0, 0, nil, fp(1_000_000), true)
	result, err := f.service.Run(context.Background(), checked)
	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)
	assert.Equal(t, "BIG", result.Tokens[0].Symbol)

	// With the volume gate off the same threshold is ignored.
	f = newFixture(tickers, pairs, nil)
	unchecked := domain.NewFilterCriteria(0, 0, nil, fp(1_000_000), false)
	result, err = f.service.Run(context.Background(), unchecked)
	require.NoError(t, err)
	assert.Len(t, result.Tokens, 2)
}

func TestRun_PerTokenFailureIsolation(t *testing.T) {
	tickers := map[string]domain.TickerRecord{
		"GOODUSDT": {Symbol: "GOODUSDT", QuoteVolume: 5_000_000, LastPrice: 2.5},
		"BADUSDT":  {Symbol: "BADUSDT", QuoteVolume: 5_000_000, LastPrice: 0.5},
	}
	pairs := map[string]*domain.PairInfo{
		"GOOD": {ContractAddress: "0xgood", Chain: "bsc", MarketCap: fp(50_000_000)},
		// "BAD" has no entry: its lookup degrades that token only.
	}

	f := newFixture(tickers, pairs, nil)
	result, err := f.service.Run(context.Background(), domain.NewFilterCriteria(0, 0, nil, nil, false))
	require.NoError(t, err)

	require.Len(t, result.Tokens, 1)
	assert.Equal(t, "GOOD", result.Tokens[0].Symbol)
}

func TestRun_PersistenceFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000},
		},
		map[string]*domain.PairInfo{
			"FOO": {ContractAddress: "0xabc", Chain: "bsc", MarketCap: fp(50_000_000)},
		},
		nil,
	)
	f.tokenRepo.Err = errors.New("disk full")
	f.snapshots.Err = errors.New("disk full")

	result, err := f.service.Run(context.Background(), domain.NewFilterCriteria(0, 0, nil, nil, false))
	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)
}

func TestRun_MarketCapBoundsApplied(t *testing.T) {
	tickers := map[string]domain.TickerRecord{
		"AAAUSDT": {Symbol: "AAAUSDT", QuoteVolume: 2_000_000},
		"BBBUSDT": {Symbol: "BBBUSDT", QuoteVolume: 2_000_000},
		"CCCUSDT": {Symbol: "CCCUSDT", QuoteVolume: 2_000_000},
	}
	pairs := map[string]*domain.PairInfo{
		"AAA": {ContractAddress: "0xaaa", Chain: "bsc", MarketCap: fp(5_000_000)},   // below min
		"BBB": {ContractAddress: "0xbbb", Chain: "bsc", MarketCap: fp(50_000_000)},  // in range
		"CCC": {ContractAddress: "0xccc", Chain: "bsc", MarketCap: fp(500_000_000)}, // above max
	}

	f := newFixture(tickers, pairs, nil)
	criteria := domain.NewFilterCriteria(10_000_000, 100_000_000, nil, nil, false)
	result, err := f.service.Run(context.Background(), criteria)
	require.NoError(t, err)

	require.Len(t, result.Tokens, 1)
	token := result.Tokens[0]
	assert.Equal(t, "BBB", token.Symbol)
	require.NotNil(t, token.MarketCap)
	assert.GreaterOrEqual(t, *token.MarketCap, criteria.MinMarketCap)
	assert.LessOrEqual(t, *token.MarketCap, criteria.MaxMarketCap)
}

func TestRun_FallsBackToExchangePriceOnLookupMiss(t *testing.T) {
	f := newFixture(
		map[string]domain.TickerRecord{
			"FOOUSDT": {Symbol: "FOOUSDT", QuoteVolume: 5_000_000, LastPrice: 1.2},
			"BARUSDT": {Symbol: "BARUSDT", QuoteVolume: 5_000_000, LastPrice: 3.4},
		},
		map[string]*domain.PairInfo{
			// FOO matches but the pair reports no price.
			"FOO": {ContractAddress: "0xabc", Chain: "bsc", MarketCap: fp(50_000_000)},
		},
		nil,
	)

	result, err := f.service.Run(context.Background(), domain.NewFilterCriteria(0, 0, nil, nil, false))
	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)

	require.NotNil(t, result.Tokens[0].Price)
	assert.Equal(t, 1.2, *result.Tokens[0].Price)
}
