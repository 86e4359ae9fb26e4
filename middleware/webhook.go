package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buildr-network/pointsbot/utils"
)

// secretTokenHeader is echoed back by Telegram on every webhook delivery when
// a secret token was registered with setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookAuth rejects webhook deliveries whose secret token header does not
// match the configured value. Comparison is constant time.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			// No secret configured; accept everything (local development).
			ctx.Next()
			return
		}
		provided := ctx.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "invalid webhook secret")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
