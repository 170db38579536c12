package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/services"
)

type ConfigHandler struct {
	projectService services.ProjectService
	configService  services.ProjectConfigService
}

func NewConfigHandler(projectService services.ProjectService, configService services.ProjectConfigService) *ConfigHandler {
	return &ConfigHandler{projectService: projectService, configService: configService}
}

func (ch *ConfigHandler) GetActive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := ch.projectService.Get(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	config, err := ch.configService.GetActive(c.Request.Context(), projectID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"config": config})
}

func (ch *ConfigHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := ch.projectService.Get(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	var req services.ConfigInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	config, err := ch.configService.Update(c.Request.Context(), projectID, req)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"config": config})
}

func (ch *ConfigHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := ch.projectService.Get(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	rows, err := ch.configService.History(c.Request.Context(), projectID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"history": rows})
}

func (ch *ConfigHandler) Revert(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := ch.projectService.Get(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	var req struct {
		Version int `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid version required"})
		return
	}
	config, err := ch.configService.Revert(c.Request.Context(), projectID, req.Version)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"config": config})
}
