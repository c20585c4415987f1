package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/service"
)

// BadgeHandler serves unread counters
type BadgeHandler struct {
	service service.BadgeService
}

// NewBadgeHandler creates a new BadgeHandler
func NewBadgeHandler(service service.BadgeService) *BadgeHandler {
	return &BadgeHandler{service: service}
}

// GetUnread handles GET /messages/unread
// @Summary Unread messages addressed to the caller
// @Tags badge
// @Produce json
// @Param sender_id query string false "only count this sender"
// @Router /messages/unread [get]
func (h *BadgeHandler) GetUnread(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.service.Unread(c.Request.Context(), userID, c.Query("sender_id"))
	if err != nil {
		respondError(c, "Failed to count unread messages", err)
		return
	}
	common.SuccessResponse(c, domain.UnreadCountResponse{Count: n}, nil)
}

// GetBadge handles GET /badge
// @Summary Role-dependent unread badge
// @Tags badge
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.BadgeResponse}
// @Router /badge [get]
func (h *BadgeHandler) GetBadge(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	badge, err := h.service.Badge(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to load badge", err)
		return
	}
	common.SuccessResponse(c, badge, nil)
}

// GetAthleteUnread handles GET /coach/athletes/unread
// @Summary Per-athlete unread counts for the coach dashboard
// @Tags badge
// @Produce json
// @Router /coach/athletes/unread [get]
func (h *BadgeHandler) GetAthleteUnread(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.service.AthleteUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to load athlete counters", err)
		return
	}
	common.SuccessResponse(c, list, &common.Meta{Total: int64(len(list))})
}
