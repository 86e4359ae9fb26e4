package main

import (
	"context"
	"time"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/models"
	"github.com/buildr-network/pointsbot/points"
	"github.com/buildr-network/pointsbot/routes"
	"github.com/buildr-network/pointsbot/store"
	"github.com/buildr-network/pointsbot/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	var st store.Store
	switch cfg.StorageDriver {
	case "memory":
		utils.Sugar.Warn("using in-memory storage; data is lost on restart")
		st = store.NewMemoryStore()
	default:
		db := config.InitDatabase(&models.Account{}, &models.CheckinRecord{}, &models.ReferralBonus{}, &models.GroupActivity{})
		st = store.NewGormStore(db)
	}

	policy := points.Policy{
		InitialGrantPoints:  cfg.InitialGrant,
		ReferralBonusPoints: cfg.ReferralBonus,
		BaseDailyPoints:     cfg.BaseDailyPoints,
		MaxDailyPoints:      cfg.MaxDailyPoints,
	}
	eng := engine.New(st, policy, utils.Sugar)

	tg := utils.NewTelegramClient(cfg.BotToken)
	if cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tg.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			utils.Sugar.Errorf("failed to register webhook: %v", err)
		} else {
			utils.Sugar.Infof("webhook registered at %s", cfg.WebhookURL)
		}
		cancel()
	}

	r := routes.SetupRouter(eng, st, tg)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
