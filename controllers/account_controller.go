package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/config"
	"github.com/buildr-network/pointsbot/engine"
	"github.com/buildr-network/pointsbot/middleware"
	"github.com/buildr-network/pointsbot/utils"
)

// AccountController handles dashboard authentication and account reads.
type AccountController struct {
	engine *engine.Engine
}

// NewAccountController creates a new controller instance.
func NewAccountController(eng *engine.Engine) *AccountController {
	return &AccountController{engine: eng}
}

type telegramLoginRequest struct {
	ID        string `json:"id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" binding:"required"`
	Hash      string `json:"hash" binding:"required"`
	// Optional referrer carried over from an invite link.
	ReferrerID string `json:"referrer_id"`
}

// TelegramLogin verifies a Telegram login widget payload, creates the account
// when it does not exist yet, and issues a JWT.
func (a *AccountController) TelegramLogin(ctx *gin.Context) {
	var req telegramLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}

	cfg := config.Get()
	if !verifyTelegramSignature(cfg.BotToken, req) {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "invalid telegram signature")
		return
	}

	authTime := time.Unix(req.AuthDate, 0)
	if time.Since(authTime) > 5*time.Minute {
		utils.Error(ctx, http.StatusUnauthorized, 40109, "telegram login expired")
		return
	}

	acct, _, err := a.engine.CreateOrGetAccount(ctx.Request.Context(), engine.CreateAccountInput{
		TelegramID: req.ID,
		Username:   req.Username,
		ReferrerID: req.ReferrerID,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist account")
		return
	}

	token, err := utils.GenerateToken(acct.TelegramID, acct.Username, 72*time.Hour)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "account": acct})
}

// Me returns the current authenticated account with its balance.
func (a *AccountController) Me(ctx *gin.Context) {
	telegramID := ctx.GetString(middleware.ContextTelegramIDKey)
	if telegramID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	acct, err := a.engine.GetBalance(ctx.Request.Context(), telegramID)
	if err != nil {
		if errors.Is(err, engine.ErrAccountNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "account not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to load account")
		return
	}

	utils.Success(ctx, acct)
}

func verifyTelegramSignature(botToken string, req telegramLoginRequest) bool {
	if botToken == "" {
		return false
	}

	values := map[string]string{
		"auth_date": fmt.Sprintf("%d", req.AuthDate),
		"id":        req.ID,
	}
	if req.Username != "" {
		values["username"] = req.Username
	}
	if req.FirstName != "" {
		values["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		values["last_name"] = req.LastName
	}
	if req.PhotoURL != "" {
		values["photo_url"] = req.PhotoURL
	}

	pairs := make([]string, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	digest := sha256.Sum256([]byte(botToken))
	h := hmac.New(sha256.New, digest[:])
	h.Write([]byte(dataCheckString))
	expected := h.Sum(nil)
	provided, err := hex.DecodeString(strings.TrimSpace(req.Hash))
	if err != nil {
		return false
	}
	if len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, provided) == 1
}
