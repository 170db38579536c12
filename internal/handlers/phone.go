package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voxlane/voxlane-backend/internal/services"
)

type PhoneNumberHandler struct {
	phoneService services.PhoneNumberService
}

func NewPhoneNumberHandler(phoneService services.PhoneNumberService) *PhoneNumberHandler {
	return &PhoneNumberHandler{phoneService: phoneService}
}

func (ph *PhoneNumberHandler) Search(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))
	if country == "" {
		country = "US"
	}
	numbers, err := ph.phoneService.SearchAvailable(c.Request.Context(), country, c.Query("area_code"))
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"numbers": numbers})
}

func (ph *PhoneNumberHandler) Purchase(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req struct {
		Number string `json:"number"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Number) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number required"})
		return
	}
	purchased, err := ph.phoneService.Purchase(c.Request.Context(), userID, req.Number)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"phone_number": purchased})
}

func (ph *PhoneNumberHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	numbers, err := ph.phoneService.List(c.Request.Context(), userID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"phone_numbers": numbers})
}

func (ph *PhoneNumberHandler) Assign(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	phoneID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ProjectID         string `json:"project_id"`
		VoiceAgentEnabled bool   `json:"voice_agent_enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	projectID, pErr := uuid.Parse(req.ProjectID)
	if pErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	number, err := ph.phoneService.AssignToProject(c.Request.Context(), userID, phoneID, projectID, req.VoiceAgentEnabled)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"phone_number": number})
}

func (ph *PhoneNumberHandler) Unassign(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	phoneID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ph.phoneService.Unassign(c.Request.Context(), userID, phoneID); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}

func (ph *PhoneNumberHandler) Release(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	phoneID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ph.phoneService.Release(c.Request.Context(), userID, phoneID); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}
