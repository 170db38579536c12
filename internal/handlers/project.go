package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voxlane/voxlane-backend/internal/requestdata"
	"github.com/voxlane/voxlane-backend/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (ph *ProjectHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name          string               `json:"name"`
		InitialPrompt string               `json:"initial_prompt"`
		Config        services.ConfigInput `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	project, config, err := ph.projectService.Create(c.Request.Context(), userID, req.Name, req.InitialPrompt, req.Config)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project, "config": config})
}

func (ph *ProjectHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projects, err := ph.projectService.List(c.Request.Context(), userID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": projects})
}

func (ph *ProjectHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	project, err := ph.projectService.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) Archive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ph.projectService.Archive(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}

func (ph *ProjectHandler) Unarchive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ph.projectService.Unarchive(c.Request.Context(), userID, projectID); err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}

// Delete soft-deletes by default; ?mode=hard removes the project and frees
// its phone numbers.
func (ph *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var err error
	if c.Query("mode") == "hard" {
		err = ph.projectService.HardDelete(c.Request.Context(), userID, projectID)
	} else {
		err = ph.projectService.SoftDelete(c.Request.Context(), userID, projectID)
	}
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"success": "true"})
}
