package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

// RenderedCall is a fully resolved outbound request: no {{...}} marker
// survives rendering, in the URL, headers, or body.
type RenderedCall struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

type ExecutionResult struct {
	Status     int           `json:"status"`
	Body       string        `json:"body"`
	DurationMS int64         `json:"duration_ms"`
	Rendered   *RenderedCall `json:"rendered"`
}

// FunctionService renders and test-executes the custom HTTP functions stored
// in a project config. Substitution is structural: the body template is
// decoded into a value tree and placeholders are swapped for typed values,
// never patched as text.
type FunctionService interface {
	Render(ctx context.Context, spec types.FunctionSpec, args map[string]any) (*RenderedCall, error)
	Execute(ctx context.Context, spec types.FunctionSpec, args map[string]any) (*ExecutionResult, error)
}

type functionService struct {
	log        *logger.Logger
	httpClient *http.Client
}

const executeBodyLimit = 2048

func NewFunctionService(log *logger.Logger) FunctionService {
	serviceLog := log.With("service", "FunctionService")
	return &functionService{
		log:        serviceLog,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

func (fs *functionService) Render(ctx context.Context, spec types.FunctionSpec, args map[string]any) (*RenderedCall, error) {
	if strings.TrimSpace(spec.URL) == "" {
		return nil, fmt.Errorf("%w: function url required", apperr.ErrInvalidArgument)
	}

	resolved := resolveParams(spec, args)

	for _, req := range spec.Parameters.Required {
		if isEmptyValue(resolved[req]) {
			return nil, fmt.Errorf("%w: required parameter %q not resolved", apperr.ErrInvalidArgument, req)
		}
	}
	for name, v := range spec.Headers {
		if tokenPattern.MatchString(v) || strings.Contains(v, "{{") {
			return nil, fmt.Errorf("%w: header %q still contains a placeholder", apperr.ErrInvalidArgument, name)
		}
	}

	renderedURL, err := substituteURL(spec.URL, resolved)
	if err != nil {
		return nil, err
	}

	var body json.RawMessage
	if strings.TrimSpace(spec.BodyTemplate) != "" {
		var tree any
		if uErr := json.Unmarshal([]byte(spec.BodyTemplate), &tree); uErr != nil {
			return nil, fmt.Errorf("%w: body template is not valid JSON: %v", apperr.ErrInvalidArgument, uErr)
		}
		subbed, sErr := substituteTree(tree, resolved)
		if sErr != nil {
			return nil, sErr
		}
		b, mErr := json.Marshal(subbed)
		if mErr != nil {
			return nil, fmt.Errorf("failed to encode substituted body: %w", mErr)
		}
		if bytes.Contains(b, []byte("{{")) {
			return nil, fmt.Errorf("%w: body still contains a placeholder after substitution", apperr.ErrInvalidArgument)
		}
		body = b
	}

	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		method = http.MethodPost
	}

	return &RenderedCall{
		URL:     renderedURL,
		Method:  method,
		Headers: spec.Headers,
		Body:    body,
	}, nil
}

func (fs *functionService) Execute(ctx context.Context, spec types.FunctionSpec, args map[string]any) (*ExecutionResult, error) {
	call, err := fs.Render(ctx, spec, args)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if len(call.Body) > 0 {
		reqBody = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	for name, v := range call.Headers {
		req.Header.Set(name, v)
	}
	if len(call.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := fs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("function request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, executeBodyLimit+1))
	display := string(raw)
	if len(display) > executeBodyLimit {
		display = display[:executeBodyLimit] + "..."
	}

	return &ExecutionResult{
		Status:     resp.StatusCode,
		Body:       display,
		DurationMS: time.Since(start).Milliseconds(),
		Rendered:   call,
	}, nil
}

// -------------------- resolution --------------------

// resolveParams resolves every declared parameter: supplied value first, then
// the declared default, then a synthetic sample. Supplied values for
// undeclared keys pass through untouched.
func resolveParams(spec types.FunctionSpec, args map[string]any) map[string]any {
	resolved := make(map[string]any, len(spec.Parameters.Properties)+len(args))
	for k, v := range args {
		resolved[k] = v
	}
	for name, prop := range spec.Parameters.Properties {
		v, ok := resolved[name]
		if !ok || isEmptyValue(v) {
			if prop.Default != nil && !isEmptyValue(prop.Default) {
				v = prop.Default
			} else {
				v = sampleValue(name, prop)
			}
		}
		resolved[name] = coerceValue(prop.Type, v)
	}
	return resolved
}

// sampleValue synthesizes a plausible test value. The parameter name gets
// first say so test payloads look like real data.
func sampleValue(name string, prop types.FunctionParamProperty) any {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return "user@example.com"
	case strings.Contains(lower, "phone"):
		return "+15551234567"
	case strings.Contains(lower, "date"):
		return "2026-01-15"
	case strings.Contains(lower, "time"):
		return "14:30"
	case strings.Contains(lower, "url") || strings.Contains(lower, "link"):
		return "https://example.com"
	case strings.Contains(lower, "name"):
		return "Alex Smith"
	}
	switch prop.Type {
	case "number", "integer":
		return float64(42)
	case "boolean":
		return true
	case "array":
		return []any{"sample"}
	case "object":
		return map[string]any{}
	default:
		return "sample-" + name
	}
}

// coerceValue bends a resolved value toward its declared type. Strings that
// hold JSON for array/object params are parsed; scalars get wrapped.
func coerceValue(declaredType string, v any) any {
	switch declaredType {
	case "array":
		if _, ok := v.([]any); ok {
			return v
		}
		if s, ok := v.(string); ok {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
		return []any{v}
	case "object":
		if _, ok := v.(map[string]any); ok {
			return v
		}
		if s, ok := v.(string); ok {
			var obj map[string]any
			if err := json.Unmarshal([]byte(s), &obj); err == nil {
				return obj
			}
		}
		return map[string]any{}
	case "number", "integer":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		return v
	case "boolean":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
		return v
	default:
		return v
	}
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func stringForm(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// -------------------- substitution --------------------

// substituteString handles one string leaf. A string that is exactly one
// token takes the resolved value's own type; tokens embedded in longer text
// are replaced with string forms. An unknown token is an error: the rendered
// call must never carry an unresolved placeholder.
func substituteString(s string, resolved map[string]any) (any, bool, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, false, nil
	}

	// Sole-token case: "{{key}}" with nothing around it.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		key := s[matches[0][2]:matches[0][3]]
		v, ok := resolved[key]
		if !ok {
			return nil, true, fmt.Errorf("%w: unresolved placeholder %q", apperr.ErrInvalidArgument, key)
		}
		return v, true, nil
	}

	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(s[last:m[0]])
		key := s[m[2]:m[3]]
		v, ok := resolved[key]
		if !ok {
			return nil, true, fmt.Errorf("%w: unresolved placeholder %q", apperr.ErrInvalidArgument, key)
		}
		if !isEmptyValue(v) {
			out.WriteString(stringForm(v))
		}
		last = m[1]
	}
	out.WriteString(s[last:])
	return out.String(), true, nil
}

// substituteTree walks the decoded body template. Object keys whose value
// resolves to empty through substitution are removed from the tree instead of
// being serialized as empty strings.
func substituteTree(node any, resolved map[string]any) (any, error) {
	switch t := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			subbed, err := substituteTree(v, resolved)
			if err != nil {
				return nil, err
			}
			if wasSubstituted(v) && isEmptyValue(subbed) {
				continue
			}
			out[k] = subbed
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, v := range t {
			subbed, err := substituteTree(v, resolved)
			if err != nil {
				return nil, err
			}
			out = append(out, subbed)
		}
		return out, nil
	case string:
		v, _, err := substituteString(t, resolved)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return node, nil
	}
}

// wasSubstituted reports whether the template node could have produced its
// value through placeholder substitution. Literal empties authored in the
// template are kept as-is.
func wasSubstituted(templateNode any) bool {
	s, ok := templateNode.(string)
	if !ok {
		return false
	}
	return tokenPattern.MatchString(s)
}

func substituteURL(rawURL string, resolved map[string]any) (string, error) {
	var firstErr error
	out := tokenPattern.ReplaceAllStringFunc(rawURL, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]
		v, ok := resolved[key]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: unresolved placeholder %q in url", apperr.ErrInvalidArgument, key)
			}
			return match
		}
		return url.QueryEscape(stringForm(v))
	})
	if firstErr != nil {
		return "", firstErr
	}
	if strings.Contains(out, "{{") {
		return "", fmt.Errorf("%w: url still contains a placeholder", apperr.ErrInvalidArgument)
	}
	return out, nil
}
