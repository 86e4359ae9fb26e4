package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/points"
	"github.com/buildr-network/pointsbot/store"
	"github.com/buildr-network/pointsbot/utils"
)

// Update is the subset of a Telegram webhook payload the bot acts on.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an inbound Telegram message.
type Message struct {
	MessageID       int64        `json:"message_id"`
	From            *MessageFrom `json:"from"`
	Chat            MessageChat  `json:"chat"`
	Text            string       `json:"text"`
	MessageThreadID int          `json:"message_thread_id"`
}

// MessageFrom identifies the sender.
type MessageFrom struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// MessageChat identifies where the message was sent.
type MessageChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// BotController turns Telegram webhook updates into engine calls and renders
// the results back as chat messages.
type BotController struct {
	engine *engine.Engine
	store  store.Store
	tg     utils.TelegramAPI
}

// NewBotController creates a webhook controller.
func NewBotController(eng *engine.Engine, st store.Store, tg utils.TelegramAPI) *BotController {
	return &BotController{engine: eng, store: st, tg: tg}
}

// HandleUpdate is the webhook entrypoint. It always acknowledges with 200
// once the payload parses, so Telegram does not redeliver updates whose
// handling failed for user-level reasons.
func (b *BotController) HandleUpdate(ctx *gin.Context) {
	var update Update
	if err := ctx.ShouldBindJSON(&update); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid update payload")
		return
	}

	if !utils.MarkUpdateProcessed(update.UpdateID, time.Hour) {
		utils.Success(ctx, gin.H{"ok": true, "deduped": true})
		return
	}

	if update.Message != nil && update.Message.From != nil {
		b.dispatch(ctx.Request.Context(), update.Message)
	}
	utils.Success(ctx, gin.H{"ok": true})
}

func (b *BotController) dispatch(ctx context.Context, msg *Message) {
	cfg := config.Get()

	// Group traffic: only used to record introductions in the hub topic.
	if msg.Chat.Type != "private" {
		if msg.MessageThreadID == cfg.HubTopicID && msg.Text != "" {
			telegramID := fmt.Sprintf("%d", msg.From.ID)
			if err := b.store.RecordIntroduction(ctx, telegramID, msg.MessageThreadID, time.Now().UTC()); err != nil {
				utils.Sugar.Warnf("record introduction failed: %v", err)
			}
		}
		return
	}

	if !strings.HasPrefix(msg.Text, "/") {
		return
	}

	args := strings.Fields(msg.Text)
	command := strings.TrimPrefix(args[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}

	telegramID := fmt.Sprintf("%d", msg.From.ID)
	var reply string
	switch command {
	case "start":
		payload := ""
		if len(args) > 1 {
			payload = args[1]
		}
		reply = b.handleStart(ctx, telegramID, msg.From.Username, payload)
	case "daily":
		reply = b.gated(ctx, msg.From, func() string { return b.handleDaily(ctx, telegramID) })
	case "points":
		reply = b.handlePoints(ctx, telegramID)
	case "invite":
		reply = b.gated(ctx, msg.From, func() string { return b.handleInvite(telegramID) })
	case "referrals":
		reply = b.gated(ctx, msg.From, func() string { return b.handleReferrals(ctx, telegramID) })
	case "leaderboard":
		reply = b.handleLeaderboard(ctx)
	default:
		return
	}

	if reply == "" {
		return
	}
	if err := b.tg.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		utils.Sugar.Errorf("send reply failed: %v", err)
	}
}

// gated runs handler only when the sender passed the group checks: membership
// in the required group plus an introduction message in the hub topic.
func (b *BotController) gated(ctx context.Context, from *MessageFrom, handler func() string) string {
	cfg := config.Get()
	if cfg.RequiredGroup == "" {
		return handler()
	}

	status, err := b.tg.GetChatMember(ctx, cfg.RequiredGroup, from.ID)
	if err != nil {
		utils.Sugar.Errorf("group membership check failed: %v", err)
		return "❌ An error occurred while verifying your group membership."
	}
	switch status {
	case "member", "administrator", "creator":
	default:
		return fmt.Sprintf("⚠️ You must join our group to use this feature!\n\nPlease join: %s\n\nOnce you've joined, try your command again!", cfg.RequiredGroup)
	}

	telegramID := fmt.Sprintf("%d", from.ID)
	introduced, err := b.store.HasIntroduction(ctx, telegramID, cfg.HubTopicID)
	if err != nil {
		utils.Sugar.Errorf("introduction check failed: %v", err)
		return "❌ An error occurred while verifying your group membership."
	}
	if !introduced {
		return "⚠️ You need to introduce yourself in our General Hub topic!\n\nTell us about yourself and your interests!"
	}
	return handler()
}

func (b *BotController) handleStart(ctx context.Context, telegramID, username, referrerID string) string {
	cfg := config.Get()
	acct, err := b.engine.GetBalance(ctx, telegramID)
	if err == nil {
		return fmt.Sprintf("👋 Welcome back to BUILDR Network!\n\n"+
			"💰 Your current balance: %s\n\n"+
			"Available Commands:\n\n"+
			"💎 /points - Check your current balance\n"+
			"📅 /daily - Claim your daily reward\n"+
			"📩 /invite - Get your referral link to earn %s per friend\n"+
			"📊 /referrals - View your referral statistics\n"+
			"🏆 /leaderboard - See the top earners",
			points.FormatPoints(acct.Balance), points.FormatPoints(b.engine.Policy().ReferralBonus()))
	}
	if !errors.Is(err, engine.ErrAccountNotFound) {
		utils.Sugar.Errorf("start lookup failed: %v", err)
		return "❌ An error occurred while processing your request."
	}

	acct, bonusApplied, err := b.engine.CreateOrGetAccount(ctx, engine.CreateAccountInput{
		TelegramID: telegramID,
		Username:   username,
		ReferrerID: referrerID,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		utils.Sugar.Errorf("account creation failed: %v", err)
		return "❌ An error occurred while processing your request."
	}
	utils.CacheDelete(leaderboardCacheKey)

	reply := fmt.Sprintf("🚀 Welcome to BUILDR Network!\n\n"+
		"🎁 You've received %s for joining!\n\n"+
		"Available Commands:\n\n"+
		"💎 /points - Check your current balance\n"+
		"📅 /daily - Claim your daily reward\n"+
		"📩 /invite - Get your referral link to earn %s per friend\n"+
		"📊 /referrals - View your referral statistics\n"+
		"🏆 /leaderboard - See the top earners\n\n"+
		"Next step: join our group %s and introduce yourself in the General Hub!",
		points.FormatPoints(acct.Balance), points.FormatPoints(b.engine.Policy().ReferralBonus()), cfg.RequiredGroup)
	if bonusApplied {
		reply += "\n\n🎁 You were referred by another user!"
	}
	return reply
}

func (b *BotController) handleDaily(ctx context.Context, telegramID string) string {
	result, err := b.engine.CheckIn(ctx, telegramID, time.Now().UTC())
	switch {
	case err == nil:
		utils.CacheDelete(leaderboardCacheKey)
		return fmt.Sprintf("✅ Daily check-in successful!\n\n"+
			"🎯 Streak: %d days\n"+
			"💰 Earned: %s\n"+
			"💎 Total: %s",
			result.Streak, points.FormatPoints(result.Reward), points.FormatPoints(result.Balance))
	case errors.Is(err, engine.ErrAlreadyCheckedIn):
		return "⏳ You have already checked in today. Come back tomorrow!"
	case errors.Is(err, engine.ErrAccountNotFound):
		return "❌ You need to start the bot first using /start"
	case errors.Is(err, store.ErrConflict):
		return "⏳ Your check-in is being processed. Please try again in a moment."
	default:
		utils.Sugar.Errorf("daily check-in failed: %v", err)
		return "❌ An error occurred while processing your daily check-in."
	}
}

func (b *BotController) handlePoints(ctx context.Context, telegramID string) string {
	acct, err := b.engine.GetBalance(ctx, telegramID)
	switch {
	case err == nil:
		return fmt.Sprintf("💰 Your current balance: %s", points.FormatPoints(acct.Balance))
	case errors.Is(err, engine.ErrAccountNotFound):
		return "❌ You need to start the bot first using /start"
	default:
		utils.Sugar.Errorf("points lookup failed: %v", err)
		return "❌ An error occurred while fetching your points."
	}
}

func (b *BotController) handleInvite(telegramID string) string {
	cfg := config.Get()
	link := fmt.Sprintf("https://t.me/%s?start=%s", cfg.BotUsername, telegramID)
	return fmt.Sprintf("🎁 Invite your friends to BUILDR Network and earn %s for each person who joins!\n\n"+
		"Your invite link:\n%s\n\n"+
		"Share this link with your friends. When they join the bot, you'll earn rewards!",
		points.FormatPoints(b.engine.Policy().ReferralBonus()), link)
}

func (b *BotController) handleReferrals(ctx context.Context, telegramID string) string {
	stats, err := b.engine.ReferralStats(ctx, telegramID)
	if err != nil {
		utils.Sugar.Errorf("referral stats failed: %v", err)
		return "❌ An error occurred while fetching your referral statistics."
	}
	return fmt.Sprintf("📊 Your referral statistics:\n\n"+
		"👥 Friends invited: %d\n"+
		"💰 Points earned from invites: %s\n\n"+
		"Use /invite to generate a new invite link!",
		stats.Count, points.FormatPoints(stats.TotalEarned))
}

func (b *BotController) handleLeaderboard(ctx context.Context) string {
	cfg := config.Get()
	entries, err := b.engine.Leaderboard(ctx, cfg.LeaderboardTop)
	if err != nil {
		utils.Sugar.Errorf("leaderboard query failed: %v", err)
		return "❌ An error occurred while fetching the leaderboard."
	}
	if len(entries) == 0 {
		return "📊 No users found in the leaderboard yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏆 Top %d BUILDR Users 🏆\n\n", cfg.LeaderboardTop))
	medals := []string{"🥇", "🥈", "🥉"}
	for i, entry := range entries {
		medal := "▫️"
		if i < len(medals) {
			medal = medals[i]
		}
		name := entry.Username
		if name == "" {
			name = "Anonymous"
		}
		sb.WriteString(fmt.Sprintf("%s %d. @%s: %s\n", medal, entry.Position, name, points.FormatPoints(entry.Balance)))
	}
	return sb.String()
}
