package router

import (
	"github.com/gin-gonic/gin"

	"sproutlog.app/api/internal/http/handler"
	"sproutlog.app/api/internal/service"
)

// InvitationRouter sets up invitation routes.
// - /validate is public: the accept page resolves tokens before login.
// - /accept and /:invitationID/cancel require a session.
func InvitationRouter(rg *gin.RouterGroup, h *handler.InvitationHandler, authService service.AuthService) {
	rg.GET("/validate", h.Validate)

	authed := rg.Group("")
	authed.Use(requireSession(authService))
	{
		authed.POST("/accept", h.Accept)
		authed.POST("/:invitationID/cancel", h.Cancel)
	}
}
