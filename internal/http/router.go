package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mentalapp/mentalapp-api/internal/config"
	"github.com/mentalapp/mentalapp-api/internal/http/handler"
	httpmiddleware "github.com/mentalapp/mentalapp-api/internal/http/middleware"
	"github.com/mentalapp/mentalapp-api/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, reviewHandler *handler.ReviewHandler, authMiddleware *httpmiddleware.Auth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%s %s", cfg.ServiceName, cfg.AppVersion)
	})

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.GET("/verify", authHandler.Verify)
		auth.POST("/signin", authHandler.SignIn)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/me", authMiddleware.RequireAuth, authHandler.Me)
		auth.POST("/signout", authHandler.SignOut)
	}

	users := v1.Group("/users", authMiddleware.RequireAuth)
	{
		users.POST("/:id/reviews", reviewHandler.Add)
		users.PUT("/:id/reviews/:reviewId", reviewHandler.Edit)
		users.GET("/:id/reviews", reviewHandler.List)
	}

	return r
}
