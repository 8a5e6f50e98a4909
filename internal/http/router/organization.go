package router

import (
	"github.com/gin-gonic/gin"

	"sproutlog.app/api/internal/http/handler"
	"sproutlog.app/api/internal/service"
)

// OrganizationRouter sets up organization routes. Everything here needs a
// session; role checks happen in the service layer.
func OrganizationRouter(rg *gin.RouterGroup, h *handler.OrganizationHandler, invHandler *handler.InvitationHandler, authService service.AuthService) {
	rg.Use(requireSession(authService))

	rg.POST("", h.Create)
	rg.GET("/:orgID", h.Get)
	rg.GET("/:orgID/members", h.Members)
	rg.DELETE("/:orgID/members/:memberID", h.RemoveMember)
	rg.POST("/:orgID/transfer-ownership", h.TransferOwnership)
	rg.GET("/:orgID/seats", h.SeatAvailability)

	rg.POST("/:orgID/invitations", invHandler.Invite)
	rg.GET("/:orgID/invitations", invHandler.List)
}
