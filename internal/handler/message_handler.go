package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/middleware"
	"github.com/gymsmart/gymsmart-backend/internal/service"
)

// MessageHandler handles direct message HTTP requests
type MessageHandler struct {
	service service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// respondError writes err with the status its kind maps to
func respondError(c *gin.Context, message string, err error) {
	status := common.StatusFor(err)
	if status == http.StatusInternalServerError {
		c.Error(err) //nolint:errcheck
	} else {
		message = err.Error()
	}
	common.ErrorResponse(c, status, message, err)
}

func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Login required", nil)
		return "", false
	}
	return userID, true
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// ListMessages handles GET /messages
// @Summary Newest messages the caller takes part in
// @Tags messages
// @Produce json
// @Param limit query int false "max rows (100)"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Router /messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	messages, err := h.service.List(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "Failed to load messages", err)
		return
	}
	common.SuccessResponse(c, messages, &common.Meta{Limit: len(messages)})
}

// GetConversation handles GET /conversations/:peer_id/messages
// @Summary Messages between the caller and a peer, oldest first
// @Tags messages
// @Produce json
// @Param peer_id path string true "peer user id"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Router /conversations/{peer_id}/messages [get]
func (h *MessageHandler) GetConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	messages, err := h.service.Conversation(c.Request.Context(), userID, c.Param("peer_id"), queryLimit(c))
	if err != nil {
		respondError(c, "Failed to load conversation", err)
		return
	}
	common.SuccessResponse(c, messages, &common.Meta{Limit: len(messages)})
}

// SendMessage handles POST /messages
// @Summary Send a direct message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "message"
// @Success 201 {object} common.APIResponse{data=domain.Message}
// @Router /messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.service.Send(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "Failed to send message", err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: msg})
}

// MarkRead handles POST /conversations/:peer_id/read
// @Summary Mark every message from the peer as read
// @Tags messages
// @Produce json
// @Router /conversations/{peer_id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), userID, c.Param("peer_id"))
	if err != nil {
		respondError(c, "Failed to mark messages read", err)
		return
	}
	common.SuccessResponse(c, gin.H{"updated": n}, nil)
}

// ClearConversation handles DELETE /conversations/:peer_id
// @Summary Hard-delete the conversation in both directions
// @Tags messages
// @Produce json
// @Router /conversations/{peer_id} [delete]
func (h *MessageHandler) ClearConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.service.ClearConversation(c.Request.Context(), userID, c.Param("peer_id"))
	if err != nil {
		respondError(c, "Failed to clear conversation", err)
		return
	}
	common.SuccessResponse(c, gin.H{"deleted": n}, nil)
}

// EditMessage handles POST /rpc/edit_message
// @Summary Edit the caller's own message
// @Tags rpc
// @Accept json
// @Produce json
// @Param request body domain.EditMessageRequest true "edit"
// @Router /rpc/edit_message [post]
func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.service.Edit(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "Failed to edit message", err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// DeleteForEveryone handles POST /rpc/delete_message_for_everyone
// @Summary Delete the caller's own message for both participants
// @Tags rpc
// @Accept json
// @Produce json
// @Router /rpc/delete_message_for_everyone [post]
func (h *MessageHandler) DeleteForEveryone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.MessageIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.service.DeleteForEveryone(c.Request.Context(), userID, req.MessageID)
	if err != nil {
		respondError(c, "Failed to delete message", err)
		return
	}
	common.SuccessResponse(c, msg, nil)
}

// DeleteForMe handles POST /rpc/delete_message_for_me
// @Summary Hide a message for the caller only
// @Tags rpc
// @Accept json
// @Produce json
// @Router /rpc/delete_message_for_me [post]
func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req domain.MessageIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.service.DeleteForMe(c.Request.Context(), userID, req.MessageID); err != nil {
		respondError(c, "Failed to delete message", err)
		return
	}
	common.SuccessResponse(c, gin.H{"message_id": req.MessageID}, nil)
}
