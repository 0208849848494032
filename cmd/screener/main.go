package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/crypto_token_screener/internal/infrastructure/exchange"
	"github.com/vitos/crypto_token_screener/internal/infrastructure/holders"
	"github.com/vitos/crypto_token_screener/internal/infrastructure/logger"
	"github.com/vitos/crypto_token_screener/internal/infrastructure/marketdata"
	"github.com/vitos/crypto_token_screener/internal/infrastructure/storage"
	"github.com/vitos/crypto_token_screener/internal/usecase"
	"github.com/vitos/crypto_token_screener/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Providers struct {
		BinanceURL        string `yaml:"binance_url"`
		DexScreenerURL    string `yaml:"dexscreener_url"`
		TokenPocketURL    string `yaml:"tokenpocket_url"`
		RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	} `yaml:"providers"`
	Screener struct {
		Workers int `yaml:"workers"`
	} `yaml:"screener"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "screener.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Provider Clients
	timeout := time.Duration(cfg.Providers.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	binance := exchange.NewBinanceAdapter(cfg.Providers.BinanceURL, timeout, log)
	dexScreener := marketdata.NewDexScreenerAdapter(cfg.Providers.DexScreenerURL, timeout, log)
	tokenPocket := holders.NewTokenPocketAdapter(cfg.Providers.TokenPocketURL, timeout, log)

	// 5. Init Service
	svc := usecase.NewScreenerService(binance, dexScreener, tokenPocket, store, store, log, cfg.Screener.Workers)

	// 6. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, svc, store, store, log)

	// 7. Start Server
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	server.Shutdown(context.Background())
}
