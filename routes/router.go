package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/controllers"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/middleware"
	"github.com/buildr-network/pointsbot/store"
	"github.com/buildr-network/pointsbot/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(eng *engine.Engine, st store.Store, tg utils.TelegramAPI) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	botController := controllers.NewBotController(eng, st, tg)
	accountController := controllers.NewAccountController(eng)
	checkinController := controllers.NewCheckinController(eng)
	statsController := controllers.NewStatsController(eng)

	// Telegram webhook; authenticated by the secret token header
	r.POST("/webhook/telegram", middleware.WebhookAuth(cfg.WebhookSecret), botController.HandleUpdate)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/telegram", accountController.TelegramLogin)

	api.GET("/leaderboard", statsController.Leaderboard)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.GET("/me", accountController.Me)
	protected.POST("/checkin/daily", checkinController.DailyCheckin)
	protected.GET("/checkin/status", checkinController.CheckinStatus)
	protected.GET("/referrals/stats", statsController.ReferralStats)

	return r
}
