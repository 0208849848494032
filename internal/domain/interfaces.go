package domain

import "context"

// TickerSource provides the exchange ticker universe. FetchAll returns an
// empty map when the provider is unreachable; it never returns an error.
// The result is memoized per instance until Invalidate is called.
type TickerSource interface {
	FetchAll(ctx context.Context) map[string]TickerRecord
	Invalidate()
}

// MarketDataSource resolves a token symbol to its best market pair.
// Lookup returns nil when no pair matches or the provider fails.
type MarketDataSource interface {
	Lookup(ctx context.Context, symbol string) *PairInfo
}

// HolderSource provides top-10 holder concentration for BSC tokens.
// GetTop10Pct returns nil when the figure cannot be computed.
type HolderSource interface {
	GetTop10Pct(ctx context.Context, address, symbol string) *float64
}

// TokenRepository defines storage operations for screened tokens.
type TokenRepository interface {
	UpsertTokens(ctx context.Context, tokens []CandidateToken) error
	ListTokens(ctx context.Context, limit int) ([]CandidateToken, error)
}

// SnapshotRepository stores the single most recent screening result.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, result *ScreeningResult) error
	// LoadSnapshot returns (nil, nil) when no snapshot has been saved yet.
	LoadSnapshot(ctx context.Context) (*ScreeningResult, error)
}
