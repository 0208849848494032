package web

import (
	"encoding/json"
	"net/http"

	"github.com/vitos/crypto_token_screener/internal/domain"
	"go.uber.org/zap"
)

type screenRequest struct {
	MinMarketCap        float64  `json:"min_market_cap"`
	MaxMarketCap        float64  `json:"max_market_cap"`
	MinTop10HoldersPct  *float64 `json:"min_top10_holders_pct"`
	MinExchangeVolume   *float64 `json:"min_exchange_volume"`
	CheckExchangeVolume bool     `json:"check_exchange_volume"`
}

func (s *Server) handleRunScreening(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	criteria := domain.NewFilterCriteria(
		req.MinMarketCap, req.MaxMarketCap,
		req.MinTop10HoldersPct, req.MinExchangeVolume,
		req.CheckExchangeVolume,
	)

	result, err := s.service.Run(r.Context(), criteria)
	if err != nil {
		s.logger.Error("Screening failed", zap.Error(err))
		http.Error(w, "Screening failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.logger, result)
}

func (s *Server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshots.LoadSnapshot(r.Context())
	if err != nil {
		s.logger.Error("Failed to load snapshot", zap.Error(err))
		http.Error(w, "Failed to load snapshot", http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		http.Error(w, "No screening results yet", http.StatusNotFound)
		return
	}

	writeJSON(w, s.logger, snapshot)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokenRepo.ListTokens(r.Context(), 200)
	if err != nil {
		s.logger.Error("Failed to list tokens", zap.Error(err))
		http.Error(w, "Failed to list tokens", http.StatusInternalServerError)
		return
	}

	writeJSON(w, s.logger, tokens)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
