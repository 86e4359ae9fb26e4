package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/middleware"
	"github.com/buildr-network/pointsbot/store"
	"github.com/buildr-network/pointsbot/utils"
)

// CheckinController exposes the daily check-in over the dashboard API.
type CheckinController struct {
	engine *engine.Engine
}

// NewCheckinController creates a new controller instance.
func NewCheckinController(eng *engine.Engine) *CheckinController {
	return &CheckinController{engine: eng}
}

// DailyCheckin claims the daily reward for the authenticated account.
func (c *CheckinController) DailyCheckin(ctx *gin.Context) {
	telegramID := ctx.GetString(middleware.ContextTelegramIDKey)
	if telegramID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	result, err := c.engine.CheckIn(ctx.Request.Context(), telegramID, time.Now().UTC())
	switch {
	case err == nil:
		utils.CacheDelete(leaderboardCacheKey)
		utils.Success(ctx, result)
	case errors.Is(err, engine.ErrAlreadyCheckedIn):
		utils.Error(ctx, http.StatusBadRequest, 40030, "already checked in today")
	case errors.Is(err, engine.ErrAccountNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "account not found")
	case errors.Is(err, store.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "concurrent check-in, retry")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to record check-in")
	}
}

// CheckinStatus returns the account's streak and last check-in time.
func (c *CheckinController) CheckinStatus(ctx *gin.Context) {
	telegramID := ctx.GetString(middleware.ContextTelegramIDKey)
	if telegramID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	rec, err := c.engine.CheckinStatus(ctx.Request.Context(), telegramID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load check-in status")
		return
	}

	utils.Success(ctx, gin.H{
		"streak":          rec.Streak,
		"last_checkin_at": rec.LastCheckinAt,
	})
}
