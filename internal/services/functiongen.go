package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxlane/voxlane-backend/internal/clients/openai"
	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

// FunctionGenResult is either a set of generated function specs or a request
// for API documentation when the prompt names a service the model cannot
// shape calls for on its own.
type FunctionGenResult struct {
	Functions            []types.FunctionSpec `json:"functions,omitempty"`
	RequestDocumentation bool                 `json:"request_documentation,omitempty"`
	Service              string               `json:"service,omitempty"`
	Message              string               `json:"message,omitempty"`
}

// MalformedOutputError carries the truncated raw model text so the handler
// can attach it as diagnostic detail.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("model returned malformed function output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

type FunctionGenService interface {
	Generate(ctx context.Context, prompt string) (*FunctionGenResult, error)
}

type functionGenService struct {
	log    *logger.Logger
	client openai.Client
}

func NewFunctionGenService(log *logger.Logger, client openai.Client) FunctionGenService {
	serviceLog := log.With("service", "FunctionGenService")
	return &functionGenService{log: serviceLog, client: client}
}

const functionGenSystemPrompt = `You generate HTTP function definitions for a voice agent.
Given a description of what the agent should be able to do, produce concrete
function specs: name, description, url, method, headers, a JSON body template
using {{parameter}} placeholders, and a parameters schema with types,
descriptions and defaults.
If the request names a specific third-party service whose API you cannot
shape reliable calls for, respond with request_documentation=true, the
service name, and a short message asking the user for API documentation
instead of guessing endpoints.`

var functionGenSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"functions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":          map[string]any{"type": "string"},
					"description":   map[string]any{"type": "string"},
					"url":           map[string]any{"type": "string"},
					"method":        map[string]any{"type": "string"},
					"headers":       map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
					"body_template": map[string]any{"type": "string"},
					"parameters": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"properties": map[string]any{"type": "object"},
							"required":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
				"required": []string{"name", "url", "method"},
			},
		},
		"request_documentation": map[string]any{"type": "boolean"},
		"service":               map[string]any{"type": "string"},
		"message":               map[string]any{"type": "string"},
	},
}

const rawDetailLimit = 500

func truncateRaw(s string) string {
	if len(s) > rawDetailLimit {
		return s[:rawDetailLimit] + "..."
	}
	return s
}

func (fg *functionGenService) Generate(ctx context.Context, prompt string) (*FunctionGenResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt required", apperr.ErrInvalidArgument)
	}
	if fg.client == nil {
		return nil, fmt.Errorf("function generation provider is not configured; check API key configuration")
	}

	obj, rawText, err := fg.client.GenerateJSON(ctx, functionGenSystemPrompt, prompt, "function_definitions", functionGenSchema)
	if err != nil {
		if rawText != "" {
			return nil, &MalformedOutputError{Raw: truncateRaw(rawText), Err: err}
		}
		return nil, fmt.Errorf("function generation failed: %w", err)
	}

	b, mErr := json.Marshal(obj)
	if mErr != nil {
		return nil, fmt.Errorf("failed to re-encode model output: %w", mErr)
	}
	var result FunctionGenResult
	if uErr := json.Unmarshal(b, &result); uErr != nil {
		return nil, &MalformedOutputError{Raw: truncateRaw(rawText), Err: uErr}
	}

	if !result.RequestDocumentation && len(result.Functions) == 0 {
		return nil, &MalformedOutputError{
			Raw: truncateRaw(rawText),
			Err: fmt.Errorf("output carries neither functions nor a documentation request"),
		}
	}

	fg.log.Info("Generated functions", "count", len(result.Functions), "request_documentation", result.RequestDocumentation)
	return &result, nil
}
