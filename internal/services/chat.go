package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type FileContext struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Path     string `json:"path,omitempty"`
}

// StreamEvent is one frame of the chat stream. content_delta frames carry the
// increment and the accumulated text so far; a single complete frame carries
// the final text; an error frame terminates the stream.
type StreamEvent struct {
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	FullContent string `json:"fullContent,omitempty"`
	Error       string `json:"error,omitempty"`
}

const (
	StreamEventContentDelta = "content_delta"
	StreamEventComplete     = "complete"
	StreamEventError        = "error"
)

// LLMStreamer abstracts a provider's streaming chat call. Adapters over the
// concrete clients satisfy this.
type LLMStreamer interface {
	StreamChat(ctx context.Context, system string, messages []ChatMessage, onDelta func(delta string)) (string, error)
}

// ChatService proxies a conversation to an LLM provider and re-frames its
// deltas for the frontend. The [DONE] terminator is the transport's job; the
// service stops at the complete (or error) event.
type ChatService interface {
	Stream(ctx context.Context, provider string, messages []ChatMessage, files []FileContext, emit func(ev StreamEvent) error) error
	HasProvider(provider string) bool
}

const defaultChatProvider = "anthropic"

type chatService struct {
	log       *logger.Logger
	streamers map[string]LLMStreamer
}

func NewChatService(log *logger.Logger, streamers map[string]LLMStreamer) ChatService {
	serviceLog := log.With("service", "ChatService")
	return &chatService{log: serviceLog, streamers: streamers}
}

func (cs *chatService) HasProvider(provider string) bool {
	if strings.TrimSpace(provider) == "" {
		provider = defaultChatProvider
	}
	s, ok := cs.streamers[provider]
	return ok && s != nil
}

func buildSystemPrompt(files []FileContext) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant for building voice agents.")
	if len(files) == 0 {
		return sb.String()
	}
	sb.WriteString("\n\nThe user has shared the following files as context:\n")
	for _, f := range files {
		name := f.Filename
		if f.Path != "" {
			name = f.Path
		}
		sb.WriteString(fmt.Sprintf("\n--- %s ---\n%s\n", name, f.Content))
	}
	return sb.String()
}

func (cs *chatService) Stream(ctx context.Context, provider string, messages []ChatMessage, files []FileContext, emit func(ev StreamEvent) error) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: messages required", apperr.ErrInvalidArgument)
	}
	if strings.TrimSpace(provider) == "" {
		provider = defaultChatProvider
	}
	streamer, ok := cs.streamers[provider]
	if !ok || streamer == nil {
		return fmt.Errorf("%w: chat provider %q is not configured", apperr.ErrInvalidArgument, provider)
	}

	system := buildSystemPrompt(files)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var full strings.Builder
	var emitErr error

	_, err := streamer.StreamChat(streamCtx, system, messages, func(delta string) {
		mu.Lock()
		defer mu.Unlock()
		if emitErr != nil {
			return
		}
		full.WriteString(delta)
		if eErr := emit(StreamEvent{
			Type:        StreamEventContentDelta,
			Content:     delta,
			FullContent: full.String(),
		}); eErr != nil {
			emitErr = eErr
			cancel()
		}
	})

	mu.Lock()
	defer mu.Unlock()

	if emitErr != nil {
		return fmt.Errorf("stream receiver gone: %w", emitErr)
	}
	if err != nil {
		cs.log.Warn("Upstream chat stream failed", "provider", provider, "error", err)
		// Best effort: the receiver may already be gone.
		_ = emit(StreamEvent{Type: StreamEventError, Error: "The model stream failed. Please try again."})
		return err
	}

	return emit(StreamEvent{Type: StreamEventComplete, Content: full.String()})
}
