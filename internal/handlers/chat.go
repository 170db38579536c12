package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Stream proxies a conversation to the configured LLM provider as a
// text/event-stream. Each event frame is a JSON object; the stream terminates
// with a literal [DONE] data line.
func (ch *ChatHandler) Stream(c *gin.Context) {
	var req struct {
		Provider    string                 `json:"provider"`
		Messages    []services.ChatMessage `json:"messages"`
		FileContext []services.FileContext `json:"fileContext"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages required"})
		return
	}

	// A missing provider credential is a server configuration problem and is
	// reported before any stream bytes go out.
	if !ch.chatService.HasProvider(req.Provider) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat provider is not configured; check API key configuration"})
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	writeFrame := func(ev services.StreamEvent) error {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	err := ch.chatService.Stream(c.Request.Context(), req.Provider, req.Messages, req.FileContext, writeFrame)
	if err != nil {
		// The error frame (if the receiver was still reachable) was already
		// emitted by the service; the stream just ends here.
		return
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
}
