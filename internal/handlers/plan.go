package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/services"
)

type PlanHandler struct {
	planService services.PlanService
}

func NewPlanHandler(planService services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (ph *PlanHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	plan, err := ph.planService.GetByUser(c.Request.Context(), userID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": plan})
}

// BillingWebhook ingests normalized billing events from the payment provider.
// It is mounted on the public group; the reverse proxy verifies signatures.
func (ph *PlanHandler) BillingWebhook(c *gin.Context) {
	var ev services.BillingEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	plan, err := ph.planService.ApplyBillingEvent(c.Request.Context(), ev)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": plan})
}
