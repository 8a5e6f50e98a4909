package router

import (
	"github.com/gin-gonic/gin"

	"sproutlog.app/api/internal/http/handler"
	"sproutlog.app/api/internal/http/middleware"
	"sproutlog.app/api/internal/service"
)

type RouterConfig struct {
	DashboardURL string
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authService := services.Auth()

	authHandler := handler.NewAuthHandler(authService, cfg.DashboardURL, cfg.IsProduction)
	AuthRouter(router.Group("/auth"), authHandler)

	v1 := router.Group("/api/v1")
	{
		orgHandler := handler.NewOrganizationHandler(
			services.Organizations(),
			services.Membership(),
			services.Seats(),
		)
		invHandler := handler.NewInvitationHandler(services.Invitations())

		OrganizationRouter(v1.Group("/organizations"), orgHandler, invHandler, authService)
		InvitationRouter(v1.Group("/invitations"), invHandler, authService)
	}
}

func requireSession(authService service.AuthService) gin.HandlerFunc {
	return middleware.RequireSession(authService)
}
