package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/service"
)

// MealHandler serves the AI nutrition and coach endpoints
type MealHandler struct {
	analyzer *service.MealAnalyzer
}

// NewMealHandler creates a new MealHandler
func NewMealHandler(analyzer *service.MealAnalyzer) *MealHandler {
	return &MealHandler{analyzer: analyzer}
}

// AnalyzeMeal handles POST /meals/analyze
// @Summary Estimate nutrition from a meal photo
// @Tags ai
// @Accept json
// @Produce json
// @Param request body domain.AnalyzeMealRequest true "base64 image"
// @Success 200 {object} common.APIResponse{data=domain.MealAnalysis}
// @Router /meals/analyze [post]
func (h *MealHandler) AnalyzeMeal(c *gin.Context) {
	var req domain.AnalyzeMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	analysis, err := h.analyzer.Analyze(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Meal analysis failed", err)
		return
	}
	common.SuccessResponse(c, analysis, nil)
}

// CoachReply handles POST /coach/reply
// @Summary Ask the AI coach
// @Tags ai
// @Accept json
// @Produce json
// @Param request body domain.CoachReplyRequest true "question"
// @Success 200 {object} common.APIResponse{data=domain.CoachReplyResponse}
// @Router /coach/reply [post]
func (h *MealHandler) CoachReply(c *gin.Context) {
	var req domain.CoachReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	common.SuccessResponse(c, h.analyzer.CoachReply(c.Request.Context(), &req), nil)
}
