package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_token_screener/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tokens (
			address TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT,
			chain TEXT NOT NULL,
			market_cap REAL,
			volume_24h REAL,
			price REAL,
			price_change_24h REAL,
			top10_holders_pct REAL,
			exchange_volume_24h REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_chain ON tokens(chain);`,
		`CREATE TABLE IF NOT EXISTS screenings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			results TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			screened_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TokenRepository Implementation

// UpsertTokens inserts or fully updates each token keyed by contract
// address. Tokens without an address are skipped: there is nothing stable
// to key them by.
func (s *SQLiteStore) UpsertTokens(ctx context.Context, tokens []domain.CandidateToken) error {
	query := `INSERT INTO tokens (address, symbol, name, chain, market_cap, volume_24h, price, price_change_24h, top10_holders_pct, exchange_volume_24h, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(address) DO UPDATE SET
			  symbol=excluded.symbol,
			  name=excluded.name,
			  chain=excluded.chain,
			  market_cap=excluded.market_cap,
			  volume_24h=excluded.volume_24h,
			  price=excluded.price,
			  price_change_24h=excluded.price_change_24h,
			  top10_holders_pct=excluded.top10_holders_pct,
			  exchange_volume_24h=excluded.exchange_volume_24h,
			  updated_at=excluded.updated_at`

	now := time.Now().UTC()
	for _, t := range tokens {
		if t.ContractAddress == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, query,
			t.ContractAddress, t.Symbol, t.Name, t.Chain,
			nullFloat(t.MarketCap), nullFloat(t.Volume24h), nullFloat(t.Price),
			nullFloat(t.PriceChange24h), nullFloat(t.Top10HoldersPct),
			t.ExchangeVolume24h, now, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListTokens(ctx context.Context, limit int) ([]domain.CandidateToken, error) {
	query := `SELECT address, symbol, name, chain, market_cap, volume_24h, price, price_change_24h, top10_holders_pct, exchange_volume_24h
			  FROM tokens ORDER BY market_cap DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.CandidateToken
	for rows.Next() {
		var t domain.CandidateToken
		var name sql.NullString
		var marketCap, volume, price, change, top10 sql.NullFloat64
		if err := rows.Scan(&t.ContractAddress, &t.Symbol, &name, &t.Chain,
			&marketCap, &volume, &price, &change, &top10, &t.ExchangeVolume24h); err != nil {
			return nil, err
		}
		t.Name = name.String
		t.MarketCap = floatPtr(marketCap)
		t.Volume24h = floatPtr(volume)
		t.Price = floatPtr(price)
		t.PriceChange24h = floatPtr(change)
		t.Top10HoldersPct = floatPtr(top10)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// SnapshotRepository Implementation

// SaveSnapshot overwrites the single retained screening result.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, result *domain.ScreeningResult) error {
	payload, err := json.Marshal(result.Tokens)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM screenings`); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO screenings (results, result_count, screened_at) VALUES (?, ?, ?)`,
		string(payload), len(result.Tokens), result.ScreenedAt.UTC())
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*domain.ScreeningResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT results, screened_at FROM screenings LIMIT 1`)

	var payload string
	var screenedAt time.Time
	if err := row.Scan(&payload, &screenedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var tokens []domain.CandidateToken
	if err := json.Unmarshal([]byte(payload), &tokens); err != nil {
		return nil, err
	}

	return &domain.ScreeningResult{Tokens: tokens, ScreenedAt: screenedAt}, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
