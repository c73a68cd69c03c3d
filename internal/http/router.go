package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lectory/lectory-auth/internal/config"
	"github.com/lectory/lectory-auth/internal/http/handler"
	httpmiddleware "github.com/lectory/lectory-auth/internal/http/middleware"
	"github.com/lectory/lectory-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/oauth/start", authHandler.OAuthStart)
		authGroup.GET("/:provider/callback", authHandler.OAuthCallback)

		code := authGroup.Group("/code")
		{
			code.POST("/start", authHandler.CodeStart)
			code.POST("/confirm", authHandler.CodeConfirm)
		}

		authGroup.GET("/status", authHandler.Status)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMiddleware.ValidateBearer, authHandler.Me)
	}

	r.GET("/healthz", authHandler.Healthz)

	return r
}
