package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/services"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type FunctionHandler struct {
	functionService services.FunctionService
	genService      services.FunctionGenService
}

func NewFunctionHandler(functionService services.FunctionService, genService services.FunctionGenService) *FunctionHandler {
	return &FunctionHandler{functionService: functionService, genService: genService}
}

// Test renders a function spec with the given arguments and executes the
// resulting request, returning status and truncated body for display.
func (fh *FunctionHandler) Test(c *gin.Context) {
	var req struct {
		Function types.FunctionSpec `json:"function"`
		Args     map[string]any     `json:"args"`
		DryRun   bool               `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.DryRun {
		call, err := fh.functionService.Render(c.Request.Context(), req.Function, req.Args)
		if err != nil {
			RespondMapped(c, err)
			return
		}
		RespondOK(c, gin.H{"rendered": call})
		return
	}

	result, err := fh.functionService.Execute(c.Request.Context(), req.Function, req.Args)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, result)
}

func (fh *FunctionHandler) Generate(c *gin.Context) {
	var req struct {
		Prompt    string `json:"prompt"`
		ProjectID string `json:"projectId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := fh.genService.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		var malformed *services.MalformedOutputError
		if errors.As(err, &malformed) {
			c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{
				Message: "model returned malformed function output",
				Code:    "malformed_model_output",
				Details: malformed.Raw,
			}})
			return
		}
		RespondMapped(c, err)
		return
	}

	if result.RequestDocumentation {
		RespondOK(c, gin.H{
			"request_documentation": true,
			"service":               result.Service,
			"message":               result.Message,
		})
		return
	}
	RespondOK(c, gin.H{"functions": result.Functions})
}
