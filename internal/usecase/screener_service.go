package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vitos/crypto_token_screener/internal/domain"
	"go.uber.org/zap"
)

// DefaultWorkers bounds concurrent requests per enrichment stage so a batch
// does not trip provider rate limits.
const DefaultWorkers = 5

// ScreenerService orchestrates the screening pipeline: ticker universe,
// volume pre-filter, market-data enrichment, holder-concentration
// enrichment, final filter, sort and persistence.
type ScreenerService struct {
	tickers    domain.TickerSource
	marketData domain.MarketDataSource
	holders    domain.HolderSource
	tokenRepo  domain.TokenRepository
	snapshots  domain.SnapshotRepository
	logger     *zap.Logger
	workers    int
	timeNow    func() time.Time // For testing
}

func NewScreenerService(
	tickers domain.TickerSource,
	marketData domain.MarketDataSource,
	holders domain.HolderSource,
	tokenRepo domain.TokenRepository,
	snapshots domain.SnapshotRepository,
	logger *zap.Logger,
	workers int,
) *ScreenerService {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &ScreenerService{
		tickers:    tickers,
		marketData: marketData,
		holders:    holders,
		tokenRepo:  tokenRepo,
		snapshots:  snapshots,
		logger:     logger,
		workers:    workers,
		timeNow:    time.Now,
	}
}

// Run executes one screening. It returns an empty result when the ticker
// universe is unavailable; per-token enrichment failures degrade only the
// token they belong to. Persistence failures are logged and never fail the
// run.
func (s *ScreenerService) Run(ctx context.Context, criteria domain.FilterCriteria) (*domain.ScreeningResult, error) {
	s.tickers.Invalidate()

	universe := s.tickers.FetchAll(ctx)
	if len(universe) == 0 {
		s.logger.Error("ticker universe is empty, aborting screening")
		return &domain.ScreeningResult{Tokens: []domain.CandidateToken{}, ScreenedAt: s.timeNow()}, nil
	}
	s.logger.Info("ticker universe fetched", zap.Int("pairs", len(universe)))

	candidates := s.preFilter(universe, criteria)
	s.logger.Info("volume pre-filter applied", zap.Int("candidates", len(candidates)))

	s.enrichMarketData(ctx, candidates)

	if criteria.MinTop10HoldersPct != nil {
		s.enrichHolders(ctx, candidates)
	}

	filtered := applyFilters(candidates, criteria)

	sort.SliceStable(filtered, func(i, j int) bool {
		return *filtered[i].MarketCap > *filtered[j].MarketCap
	})

	result := &domain.ScreeningResult{Tokens: filtered, ScreenedAt: s.timeNow()}
	s.persist(ctx, result)

	s.logger.Info("screening finished", zap.Int("results", len(filtered)))
	return result, nil
}

// preFilter keeps USDT-quoted tickers above the exchange volume threshold
// and seeds one candidate per base symbol. Symbols are walked in sorted
// order so the candidate list is deterministic for a given universe.
func (s *ScreenerService) preFilter(universe map[string]domain.TickerRecord, criteria domain.FilterCriteria) []*domain.CandidateToken {
	minVolume := 0.0
	if criteria.CheckExchangeVolume && criteria.MinExchangeVolume != nil {
		minVolume = *criteria.MinExchangeVolume
	}

	symbols := make([]string, 0, len(universe))
	for symbol := range universe {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	seen := make(map[string]bool, len(symbols))
	var candidates []*domain.CandidateToken
	for _, symbol := range symbols {
		if !strings.HasSuffix(symbol, domain.QuoteSuffix) {
			continue
		}
		ticker := universe[symbol]
		if minVolume > 0 && ticker.QuoteVolume < minVolume {
			continue
		}

		base := domain.BaseSymbol(symbol)
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true

		candidates = append(candidates, &domain.CandidateToken{
			Symbol:              base,
			ExchangeSymbol:      symbol,
			ExchangeVolume24h:   ticker.QuoteVolume,
			ExchangePrice:       ticker.LastPrice,
			ExchangePriceChange: ticker.PriceChangePct,
			Chain:               "unknown",
		})
	}
	return candidates
}

// runPool fans the given indices out over a bounded worker pool and blocks
// until every dispatched item is done. Workers write only to their own
// token, so no locking is needed beyond the pool itself.
func (s *ScreenerService) runPool(indices []int, work func(i int)) {
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				work(i)
			}
		}()
	}

	for _, i := range indices {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (s *ScreenerService) enrichMarketData(ctx context.Context, tokens []*domain.CandidateToken) {
	indices := make([]int, len(tokens))
	for i := range tokens {
		indices[i] = i
	}
	s.runPool(indices, func(i int) {
		s.enrichTokenMarketData(ctx, tokens[i])
	})
}

func (s *ScreenerService) enrichTokenMarketData(ctx context.Context, token *domain.CandidateToken) {
	info := s.marketData.Lookup(ctx, token.Symbol)
	if info == nil {
		// No match: the token survives the stage degraded, not dropped.
		token.MarketCap = nil
		token.Chain = "unknown"
		price := token.ExchangePrice
		token.Price = &price
		return
	}

	token.MarketCap = info.MarketCap
	token.ContractAddress = info.ContractAddress
	token.Volume24h = info.Volume24h
	token.PriceChange24h = info.PriceChange24h

	token.Chain = info.Chain
	if token.Chain == "" {
		token.Chain = "unknown"
	}
	token.Name = info.Name
	if token.Name == "" {
		token.Name = token.Symbol
	}
	token.Price = info.Price
	if token.Price == nil {
		price := token.ExchangePrice
		token.Price = &price
	}
}

// enrichHolders fills top-10 holder concentration for BSC tokens. The
// provider cannot answer for other chains, so those tokens are assigned nil
// without a network call.
func (s *ScreenerService) enrichHolders(ctx context.Context, tokens []*domain.CandidateToken) {
	var bsc []int
	for i, t := range tokens {
		if domain.IsBSCChain(t.Chain) {
			bsc = append(bsc, i)
		} else {
			t.Top10HoldersPct = nil
		}
	}
	s.logger.Info("fetching holder concentration", zap.Int("bsc_tokens", len(bsc)))

	s.runPool(bsc, func(i int) {
		t := tokens[i]
		t.Top10HoldersPct = s.holders.GetTop10Pct(ctx, t.ContractAddress, t.Symbol)
	})
}

// applyFilters applies the final multi-criterion filter. A token without a
// market cap is excluded outright; a nil holder concentration fails any
// active holder threshold.
func applyFilters(tokens []*domain.CandidateToken, criteria domain.FilterCriteria) []domain.CandidateToken {
	filtered := make([]domain.CandidateToken, 0, len(tokens))
	for _, t := range tokens {
		if t.MarketCap == nil {
			continue
		}
		if *t.MarketCap < criteria.MinMarketCap || *t.MarketCap > criteria.MaxMarketCap {
			continue
		}
		if criteria.MinTop10HoldersPct != nil {
			if t.Top10HoldersPct == nil || *t.Top10HoldersPct < *criteria.MinTop10HoldersPct {
				continue
			}
		}
		filtered = append(filtered, *t)
	}
	return filtered
}

func (s *ScreenerService) persist(ctx context.Context, result *domain.ScreeningResult) {
	if len(result.Tokens) > 0 {
		if err := s.tokenRepo.UpsertTokens(ctx, result.Tokens); err != nil {
			s.logger.Error("failed to upsert tokens", zap.Error(err))
		}
	}
	if err := s.snapshots.SaveSnapshot(ctx, result); err != nil {
		s.logger.Error("failed to save screening snapshot", zap.Error(err))
	}
}
