package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/middleware"
	"github.com/buildr-network/pointsbot/points"
	"github.com/buildr-network/pointsbot/store"
)

// nextUpdateID hands out unique IDs so the global dedup store never collides
// across tests.
var nextUpdateID int64 = 1000

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeTelegram records outbound messages and returns a canned membership
// status.
type fakeTelegram struct {
	mu           sync.Mutex
	sent         []sentMessage
	memberStatus string
}

func (f *fakeTelegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeTelegram) GetChatMember(ctx context.Context, chat string, userID int64) (string, error) {
	if f.memberStatus == "" {
		return "member", nil
	}
	return f.memberStatus, nil
}

func (f *fakeTelegram) SetWebhook(ctx context.Context, url, secretToken string) error {
	return nil
}

func (f *fakeTelegram) lastMessage() (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeTelegram) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type botFixture struct {
	router *gin.Engine
	store  *store.MemoryStore
	engine *engine.Engine
	tg     *fakeTelegram
}

func newBotFixture(t *testing.T, cfg config.AppConfig) *botFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret"
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = "buildr_bot"
	}
	if cfg.HubTopicID == 0 {
		cfg.HubTopicID = 13
	}
	if cfg.LeaderboardTop == 0 {
		cfg.LeaderboardTop = 10
	}
	config.SetForTesting(cfg)

	st := store.NewMemoryStore()
	eng := engine.New(st, points.DefaultPolicy(), zap.NewNop().Sugar())
	tg := &fakeTelegram{}
	bc := NewBotController(eng, st, tg)

	router := gin.New()
	router.POST("/webhook/telegram", middleware.WebhookAuth(cfg.WebhookSecret), bc.HandleUpdate)
	return &botFixture{router: router, store: st, engine: eng, tg: tg}
}

func (f *botFixture) postUpdate(t *testing.T, update Update, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(update)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func privateCommand(userID int64, username, text string) Update {
	return Update{
		UpdateID: atomic.AddInt64(&nextUpdateID, 1),
		Message: &Message{
			From: &MessageFrom{ID: userID, Username: username},
			Chat: MessageChat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func TestWebhookSecretEnforced(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{WebhookSecret: "hook-secret"})

	w := f.postUpdate(t, privateCommand(1, "alice", "/points"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.postUpdate(t, privateCommand(1, "alice", "/points"), map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.postUpdate(t, privateCommand(1, "alice", "/points"), map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "hook-secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartCreatesAccount(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	w := f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	acct, err := f.store.GetAccount(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.Balance)
	assert.Equal(t, "alice", acct.Username)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Contains(t, msg.Text, "Welcome to BUILDR Network")
	assert.Contains(t, msg.Text, "10 pBUILDR")
}

func TestStartWelcomesBackExistingAccount(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Welcome back")

	acct, err := f.store.GetAccount(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.Balance)
}

func TestStartWithReferralPayload(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(200, "bob", "/start 100"), nil)

	referrer, err := f.store.GetAccount(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 35, referrer.Balance)

	referred, err := f.store.GetAccount(context.Background(), "200")
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, "100", *referred.ReferredBy)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "referred by another user")
}

func TestDailyCommand(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/daily"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Daily check-in successful")
	assert.Contains(t, msg.Text, "Streak: 1 days")
	assert.Contains(t, msg.Text, "Total: 15 pBUILDR")

	f.postUpdate(t, privateCommand(100, "alice", "/daily"), nil)
	msg, ok = f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "already checked in today")
}

func TestDailyWithoutAccount(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(300, "carol", "/daily"), nil)
	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "/start")
}

func TestDuplicateUpdateDeduped(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	update := privateCommand(100, "alice", "/start")
	w := f.postUpdate(t, update, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sent := f.tg.count()

	w = f.postUpdate(t, update, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deduped")
	assert.Equal(t, sent, f.tg.count())
}

func TestCommandWithBotSuffix(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start@buildr_bot"), nil)
	_, err := f.store.GetAccount(context.Background(), "100")
	assert.NoError(t, err)
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	w := f.postUpdate(t, privateCommand(100, "alice", "/frobnicate"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.tg.count())
}

func TestPlainTextIgnoredInPrivateChat(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	w := f.postUpdate(t, privateCommand(100, "alice", "hello there"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.tg.count())
}

func TestGroupIntroductionRecorded(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	update := Update{
		UpdateID: atomic.AddInt64(&nextUpdateID, 1),
		Message: &Message{
			From:            &MessageFrom{ID: 100, Username: "alice"},
			Chat:            MessageChat{ID: -100123, Type: "supergroup"},
			Text:            "hi, I build things",
			MessageThreadID: 13,
		},
	}
	w := f.postUpdate(t, update, nil)
	require.Equal(t, http.StatusOK, w.Code)

	introduced, err := f.store.HasIntroduction(context.Background(), "100", 13)
	require.NoError(t, err)
	assert.True(t, introduced)
	// Group traffic never gets a reply
	assert.Equal(t, 0, f.tg.count())
}

func TestGroupMessageOutsideHubTopicIgnored(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	update := Update{
		UpdateID: atomic.AddInt64(&nextUpdateID, 1),
		Message: &Message{
			From:            &MessageFrom{ID: 100, Username: "alice"},
			Chat:            MessageChat{ID: -100123, Type: "supergroup"},
			Text:            "off topic",
			MessageThreadID: 7,
		},
	}
	f.postUpdate(t, update, nil)

	introduced, err := f.store.HasIntroduction(context.Background(), "100", 13)
	require.NoError(t, err)
	assert.False(t, introduced)
}

func TestGatingBlocksNonMembers(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{RequiredGroup: "@buildr_group"})
	f.tg.memberStatus = "left"

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/daily"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "join our group")

	acct, err := f.store.GetAccount(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.Balance)
}

func TestGatingRequiresIntroduction(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{RequiredGroup: "@buildr_group"})
	f.tg.memberStatus = "member"

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/daily"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "introduce yourself")
}

func TestGatingPassesAfterIntroduction(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{RequiredGroup: "@buildr_group"})
	f.tg.memberStatus = "member"

	require.NoError(t, f.store.RecordIntroduction(context.Background(), "100", 13, time.Now().UTC()))
	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/daily"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Daily check-in successful")
}

func TestPointsCommand(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/points"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "current balance: 10 pBUILDR")
}

func TestInviteCommand(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/invite"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "https://t.me/buildr_bot?start=100")
}

func TestReferralsCommand(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	f.postUpdate(t, privateCommand(100, "alice", "/start"), nil)
	f.postUpdate(t, privateCommand(200, "bob", "/start 100"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/referrals"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Friends invited: 1")
	assert.Contains(t, msg.Text, "25 pBUILDR")
}

func TestLeaderboardCommand(t *testing.T) {
	f := newBotFixture(t, config.AppConfig{})

	for i, name := range []string{"alice", "bob", "carol"} {
		f.postUpdate(t, privateCommand(int64(100+i), name, "/start"), nil)
	}
	f.postUpdate(t, privateCommand(101, "bob", "/daily"), nil)
	f.postUpdate(t, privateCommand(100, "alice", "/leaderboard"), nil)

	msg, ok := f.tg.lastMessage()
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(msg.Text), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[len(lines)-3], "🥇")
	assert.Contains(t, lines[len(lines)-3], "@bob")
	assert.Contains(t, lines[len(lines)-3], fmt.Sprintf("%d pBUILDR", 15))
	assert.Contains(t, lines[len(lines)-2], "@alice")
	assert.Contains(t, lines[len(lines)-1], "@carol")
}
