package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/services"
)

type fakeChatService struct {
	events      []services.StreamEvent
	streamErr   error
	hasProvider bool
}

func (f *fakeChatService) Stream(ctx context.Context, provider string, messages []services.ChatMessage, files []services.FileContext, emit func(ev services.StreamEvent) error) error {
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeChatService) HasProvider(provider string) bool {
	return f.hasProvider
}

func newChatRouter(svc services.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/chat/stream", NewChatHandler(svc).Stream)
	return r
}

func TestChatStreamWritesFramesAndDone(t *testing.T) {
	svc := &fakeChatService{
		hasProvider: true,
		events: []services.StreamEvent{
			{Type: services.StreamEventContentDelta, Content: "Hel", FullContent: "Hel"},
			{Type: services.StreamEventContentDelta, Content: "lo", FullContent: "Hello"},
			{Type: services.StreamEventComplete, Content: "Hello"},
		},
	}
	router := newChatRouter(svc)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event-stream content type, got %q", ct)
	}

	out := w.Body.String()
	frames := []string{}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(frames) != 4 {
		t.Fatalf("expected 4 data frames, got %d: %q", len(frames), frames)
	}
	if !strings.Contains(frames[0], `"content_delta"`) || !strings.Contains(frames[2], `"complete"`) {
		t.Fatalf("unexpected frame ordering: %q", frames)
	}
	if frames[3] != "[DONE]" {
		t.Fatalf("expected [DONE] terminator, got %q", frames[3])
	}
}

func TestChatStreamUnconfiguredProviderFailsBeforeStreaming(t *testing.T) {
	router := newChatRouter(&fakeChatService{hasProvider: false})

	body := `{"messages":[{"role":"user","content":"hi"}],"provider":"openai"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "data:") {
		t.Fatalf("error must be reported before any stream bytes, got %q", w.Body.String())
	}
}

func TestChatStreamErrorEndsWithoutDone(t *testing.T) {
	svc := &fakeChatService{
		hasProvider: true,
		events: []services.StreamEvent{
			{Type: services.StreamEventContentDelta, Content: "par", FullContent: "par"},
			{Type: services.StreamEventError, Error: "upstream closed"},
		},
		streamErr: context.DeadlineExceeded,
	}
	router := newChatRouter(svc)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	out := w.Body.String()
	if !strings.Contains(out, `"error"`) {
		t.Fatalf("expected an error frame, got %q", out)
	}
	if strings.Contains(out, "[DONE]") {
		t.Fatalf("errored stream must not emit [DONE], got %q", out)
	}
}

func TestChatStreamRequiresMessages(t *testing.T) {
	router := newChatRouter(&fakeChatService{hasProvider: true})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(`{"messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
