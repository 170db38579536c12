package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

type fakeStreamer struct {
	deltas     []string
	err        error
	lastSystem string
}

func (f *fakeStreamer) StreamChat(ctx context.Context, system string, messages []ChatMessage, onDelta func(delta string)) (string, error) {
	f.lastSystem = system
	var full strings.Builder
	for _, d := range f.deltas {
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}
		full.WriteString(d)
		onDelta(d)
	}
	if f.err != nil {
		return full.String(), f.err
	}
	return full.String(), nil
}

func collectEvents(t *testing.T, cs ChatService, provider string, messages []ChatMessage, files []FileContext) ([]StreamEvent, error) {
	t.Helper()
	var events []StreamEvent
	err := cs.Stream(context.Background(), provider, messages, files, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestChatStreamFraming(t *testing.T) {
	fake := &fakeStreamer{deltas: []string{"Hel", "lo ", "there"}}
	cs := NewChatService(logger.NewNop(), map[string]LLMStreamer{"anthropic": fake})

	events, err := collectEvents(t, cs, "", []ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 3 deltas + 1 complete", len(events))
	}

	wantFull := []string{"Hel", "Hel" + "lo ", "Hello there"}
	for i := 0; i < 3; i++ {
		ev := events[i]
		if ev.Type != StreamEventContentDelta {
			t.Fatalf("event %d type = %q, want content_delta", i, ev.Type)
		}
		if ev.Content != fake.deltas[i] {
			t.Fatalf("event %d content = %q, want %q", i, ev.Content, fake.deltas[i])
		}
		if ev.FullContent != wantFull[i] {
			t.Fatalf("event %d fullContent = %q, want %q", i, ev.FullContent, wantFull[i])
		}
	}

	last := events[3]
	if last.Type != StreamEventComplete {
		t.Fatalf("last event type = %q, want complete", last.Type)
	}
	if last.Content != "Hello there" {
		t.Fatalf("complete content = %q, want concatenation of deltas", last.Content)
	}
}

func TestChatStreamMidstreamError(t *testing.T) {
	fake := &fakeStreamer{deltas: []string{"par"}, err: fmt.Errorf("upstream reset")}
	cs := NewChatService(logger.NewNop(), map[string]LLMStreamer{"anthropic": fake})

	events, err := collectEvents(t, cs, "anthropic", []ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatalf("Stream should surface the upstream error")
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 1 delta + 1 error", len(events))
	}
	if events[0].Type != StreamEventContentDelta {
		t.Fatalf("first event type = %q, want content_delta", events[0].Type)
	}
	if events[1].Type != StreamEventError || events[1].Error == "" {
		t.Fatalf("last event = %+v, want error frame with message", events[1])
	}
}

func TestChatStreamUnconfiguredProvider(t *testing.T) {
	cs := NewChatService(logger.NewNop(), map[string]LLMStreamer{})
	_, err := collectEvents(t, cs, "openai", []ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for unconfigured provider", err)
	}
	if cs.HasProvider("openai") {
		t.Fatalf("HasProvider(openai) = true, want false")
	}
}

func TestChatStreamEmbedsFileContext(t *testing.T) {
	fake := &fakeStreamer{deltas: []string{"ok"}}
	cs := NewChatService(logger.NewNop(), map[string]LLMStreamer{"anthropic": fake})

	files := []FileContext{{Filename: "menu.md", Content: "Pizza: $12"}}
	if _, err := collectEvents(t, cs, "", []ChatMessage{{Role: "user", Content: "hi"}}, files); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if !strings.Contains(fake.lastSystem, "menu.md") || !strings.Contains(fake.lastSystem, "Pizza: $12") {
		t.Fatalf("system prompt %q does not embed file context", fake.lastSystem)
	}
}

func TestChatStreamStopsWhenReceiverFails(t *testing.T) {
	fake := &fakeStreamer{deltas: []string{"a", "b", "c", "d"}}
	cs := NewChatService(logger.NewNop(), map[string]LLMStreamer{"anthropic": fake})

	var delivered int
	err := cs.Stream(context.Background(), "", []ChatMessage{{Role: "user", Content: "hi"}}, nil, func(ev StreamEvent) error {
		delivered++
		if delivered == 2 {
			return fmt.Errorf("client went away")
		}
		return nil
	})
	if err == nil {
		t.Fatalf("Stream should fail when the receiver does")
	}
	if delivered != 2 {
		t.Fatalf("delivered %d events after receiver failure, want 2", delivered)
	}
}
