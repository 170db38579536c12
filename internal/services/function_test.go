package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

func testFunctionService() FunctionService {
	return NewFunctionService(logger.NewNop())
}

func TestRenderTypedSubstitution(t *testing.T) {
	spec := types.FunctionSpec{
		Name:   "book_appointment",
		URL:    "https://api.example.com/book",
		Method: "post",
		BodyTemplate: `{
			"customer": "{{customer_name}}",
			"party_size": "{{party_size}}",
			"confirmed": "{{confirmed}}",
			"note": "booked by {{customer_name}}"
		}`,
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"customer_name": {Type: "string"},
				"party_size":    {Type: "number"},
				"confirmed":     {Type: "boolean"},
			},
		},
	}
	args := map[string]any{
		"customer_name": "Dana",
		"party_size":    float64(4),
		"confirmed":     true,
	}

	call, err := testFunctionService().Render(context.Background(), spec, args)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if call.Method != "POST" {
		t.Fatalf("method = %q, want POST", call.Method)
	}

	var body map[string]any
	if err := json.Unmarshal(call.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	if body["customer"] != "Dana" {
		t.Fatalf("customer = %v, want Dana", body["customer"])
	}
	if body["party_size"] != float64(4) {
		t.Fatalf("party_size = %v (%T), want typed number 4", body["party_size"], body["party_size"])
	}
	if body["confirmed"] != true {
		t.Fatalf("confirmed = %v (%T), want typed bool true", body["confirmed"], body["confirmed"])
	}
	if body["note"] != "booked by Dana" {
		t.Fatalf("note = %v, want inline substitution", body["note"])
	}
	if strings.Contains(string(call.Body), "{{") {
		t.Fatalf("rendered body still contains a placeholder: %s", call.Body)
	}
}

func TestRenderDropsEmptySubstitutedKeys(t *testing.T) {
	spec := types.FunctionSpec{
		URL:          "https://api.example.com/notify",
		BodyTemplate: `{"message": "{{message}}", "cc": "{{cc}}", "literal": ""}`,
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"message": {Type: "string"},
				"cc":      {Type: "string"},
			},
		},
	}
	// cc is supplied empty and left undeclared so nothing resynthesizes it.
	delete(spec.Parameters.Properties, "cc")
	args := map[string]any{"message": "hello", "cc": ""}

	call, err := testFunctionService().Render(context.Background(), spec, args)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(call.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	if _, present := body["cc"]; present {
		t.Fatalf("cc should be structurally removed, got %v", body["cc"])
	}
	if body["message"] != "hello" {
		t.Fatalf("message = %v, want hello", body["message"])
	}
	if v, present := body["literal"]; !present || v != "" {
		t.Fatalf("authored literal empty string must survive, got %v (present=%v)", v, present)
	}
}

func TestRenderSampleSynthesis(t *testing.T) {
	spec := types.FunctionSpec{
		URL:          "https://api.example.com/crm",
		BodyTemplate: `{"email": "{{customer_email}}", "phone": "{{phone}}", "count": "{{count}}", "tags": "{{tags}}"}`,
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"customer_email": {Type: "string"},
				"phone":          {Type: "string"},
				"count":          {Type: "number"},
				"tags":           {Type: "array"},
			},
		},
	}

	call, err := testFunctionService().Render(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(call.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	if !strings.Contains(body["email"].(string), "@") {
		t.Fatalf("email sample = %v, want something email-shaped", body["email"])
	}
	if !strings.HasPrefix(body["phone"].(string), "+") {
		t.Fatalf("phone sample = %v, want E.164-shaped value", body["phone"])
	}
	if _, ok := body["count"].(float64); !ok {
		t.Fatalf("count sample = %v (%T), want a number", body["count"], body["count"])
	}
	if _, ok := body["tags"].([]any); !ok {
		t.Fatalf("tags sample = %v (%T), want an array", body["tags"], body["tags"])
	}
}

func TestRenderCoercesDeclaredTypes(t *testing.T) {
	spec := types.FunctionSpec{
		URL:          "https://api.example.com/coerce",
		BodyTemplate: `{"items": "{{items}}", "meta": "{{meta}}", "single": "{{single}}"}`,
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"items":  {Type: "array"},
				"meta":   {Type: "object"},
				"single": {Type: "array"},
			},
		},
	}
	args := map[string]any{
		"items":  `["a", "b"]`,
		"meta":   `{"k": "v"}`,
		"single": "just-one",
	}

	call, err := testFunctionService().Render(context.Background(), spec, args)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(call.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 2 || items[0] != "a" {
		t.Fatalf("items = %v, want parsed JSON array", body["items"])
	}
	meta, ok := body["meta"].(map[string]any)
	if !ok || meta["k"] != "v" {
		t.Fatalf("meta = %v, want parsed JSON object", body["meta"])
	}
	single, ok := body["single"].([]any)
	if !ok || len(single) != 1 || single[0] != "just-one" {
		t.Fatalf("single = %v, want scalar wrapped in one-element array", body["single"])
	}
}

func TestRenderRequiredParamMissing(t *testing.T) {
	spec := types.FunctionSpec{
		URL:          "https://api.example.com/strict",
		BodyTemplate: `{"id": "{{record_id}}"}`,
		Parameters: types.FunctionParams{
			Required: []string{"record_id"},
		},
	}
	_, err := testFunctionService().Render(context.Background(), spec, map[string]any{"record_id": ""})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for unresolved required param", err)
	}
}

func TestRenderRejectsPlaceholderInHeaders(t *testing.T) {
	spec := types.FunctionSpec{
		URL:     "https://api.example.com/h",
		Headers: map[string]string{"Authorization": "Bearer {{token}}"},
	}
	_, err := testFunctionService().Render(context.Background(), spec, nil)
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for templated header", err)
	}
}

func TestRenderRejectsUnknownPlaceholder(t *testing.T) {
	spec := types.FunctionSpec{
		URL:          "https://api.example.com/x",
		BodyTemplate: `{"v": "{{never_declared}}"}`,
	}
	_, err := testFunctionService().Render(context.Background(), spec, nil)
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for unknown placeholder", err)
	}
}

func TestRenderEscapesURLTokens(t *testing.T) {
	spec := types.FunctionSpec{
		URL: "https://api.example.com/search?q={{query}}",
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"query": {Type: "string"},
			},
		},
	}
	call, err := testFunctionService().Render(context.Background(), spec, map[string]any{"query": "a b&c"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.HasSuffix(call.URL, "q=a+b%26c") {
		t.Fatalf("url = %q, want escaped query token", call.URL)
	}
}

func TestExecuteSendsRenderedRequest(t *testing.T) {
	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	spec := types.FunctionSpec{
		URL:          srv.URL + "/hook",
		Method:       "POST",
		Headers:      map[string]string{"X-Api-Key": "secret"},
		BodyTemplate: `{"name": "{{name}}"}`,
		Parameters: types.FunctionParams{
			Properties: map[string]types.FunctionParamProperty{
				"name": {Type: "string"},
			},
			Required: []string{"name"},
		},
	}

	res, err := testFunctionService().Execute(context.Background(), spec, map[string]any{"name": "Dana"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.Status)
	}
	if !strings.Contains(res.Body, `"ok":true`) {
		t.Fatalf("body = %q, want upstream response", res.Body)
	}
	if gotHeader != "secret" {
		t.Fatalf("header = %q, want secret", gotHeader)
	}
	if strings.Contains(string(gotBody), "{{") {
		t.Fatalf("sent body still contains a placeholder: %s", gotBody)
	}
	var sent map[string]any
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("sent body is not valid JSON: %v", err)
	}
	if sent["name"] != "Dana" {
		t.Fatalf("sent name = %v, want Dana", sent["name"])
	}
}
