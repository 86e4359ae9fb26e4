package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/middleware"
	"github.com/buildr-network/pointsbot/utils"
)

const leaderboardCacheKey = "leaderboard:top"

// StatsController serves the leaderboard and referral statistics.
type StatsController struct {
	engine *engine.Engine
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(eng *engine.Engine) *StatsController {
	return &StatsController{engine: eng}
}

// Leaderboard returns the top accounts by balance. Public; cached briefly in
// Redis since it is the hottest read.
func (s *StatsController) Leaderboard(ctx *gin.Context) {
	if cached, ok := utils.CacheGetBytes(leaderboardCacheKey); ok {
		var entries []engine.LeaderboardEntry
		if err := json.Unmarshal(cached, &entries); err == nil {
			utils.Success(ctx, gin.H{"entries": entries})
			return
		}
	}

	cfg := config.Get()
	entries, err := s.engine.Leaderboard(ctx.Request.Context(), cfg.LeaderboardTop)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load leaderboard")
		return
	}

	utils.CacheSetJSON(leaderboardCacheKey, entries, time.Minute)
	utils.Success(ctx, gin.H{"entries": entries})
}

// ReferralStats returns invite count and earnings for the authenticated account.
func (s *StatsController) ReferralStats(ctx *gin.Context) {
	telegramID := ctx.GetString(middleware.ContextTelegramIDKey)
	if telegramID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	stats, err := s.engine.ReferralStats(ctx.Request.Context(), telegramID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load referral stats")
		return
	}

	utils.Success(ctx, stats)
}
