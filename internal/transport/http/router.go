package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/adapters/ws"
	"github.com/reberkhan12-ai/live-azan/internal/config"
	"github.com/reberkhan12-ai/live-azan/internal/core"
	"github.com/reberkhan12-ai/live-azan/internal/hub"
)

// ClientTokenMiddleware tags browser clients (dashboards) with a stable
// cookie token so reconnects are attributable in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// BearerAuthMiddleware guards the control-plane API with the same
// identity verifier the hub uses for registrations.
func BearerAuthMiddleware(verifier core.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		ident, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			log.Warn().Err(err).Str("module", "transport.http").Msg("bearer token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			return
		}
		c.Set("identity", ident)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, h *hub.Hub, verifier core.IdentityVerifier, ctl *ws.Controller, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("AzanSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "transport.http").Str("ct", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	api := r.Group("/api/masjid", BearerAuthMiddleware(verifier))
	api.POST("/:id/azan/start", handleStartAzan(h))
	api.POST("/:id/azan/stop", handleStopAzan(h))
	api.GET("/:id/status", handleStatus(h))

	log.Info().Str("module", "transport.http").Msg("router setup")
	return r
}
