package app

import (
	"context"

	"github.com/voxlane/voxlane-backend/internal/clients/anthropic"
	"github.com/voxlane/voxlane-backend/internal/clients/openai"
	redisclient "github.com/voxlane/voxlane-backend/internal/clients/redis"
	"github.com/voxlane/voxlane-backend/internal/clients/twilio"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/services"
)

// Clients holds the optional upstream integrations. A nil field means the
// integration is unconfigured; the services behind it degrade with explicit
// configuration errors rather than failing startup.
type Clients struct {
	OpenAI    openai.Client
	Anthropic anthropic.Client
	Twilio    twilio.Client
	Bus       redisclient.EventBus
}

func wireClients(log *logger.Logger) Clients {
	log.Info("Wiring clients...")
	var clients Clients

	if c, err := openai.NewClient(log); err != nil {
		log.Warn("OpenAI client unavailable", "error", err)
	} else {
		clients.OpenAI = c
	}
	if c, err := anthropic.NewFromEnv(log); err != nil {
		log.Warn("Anthropic client unavailable", "error", err)
	} else {
		clients.Anthropic = c
	}
	if c, err := twilio.NewFromEnv(log); err != nil {
		log.Warn("Twilio client unavailable", "error", err)
	} else {
		clients.Twilio = c
	}
	if b, err := redisclient.NewEventBus(log); err != nil {
		log.Warn("Redis event bus unavailable, realtime events stay instance-local", "error", err)
	} else {
		clients.Bus = b
	}
	return clients
}

// chatStreamers builds the provider table for the chat proxy from whichever
// clients came up.
func chatStreamers(clients Clients) map[string]services.LLMStreamer {
	streamers := make(map[string]services.LLMStreamer)
	if clients.Anthropic != nil {
		streamers["anthropic"] = anthropicStreamer{c: clients.Anthropic}
	}
	if clients.OpenAI != nil {
		streamers["openai"] = openaiStreamer{c: clients.OpenAI}
	}
	return streamers
}

type anthropicStreamer struct {
	c anthropic.Client
}

func (s anthropicStreamer) StreamChat(ctx context.Context, system string, messages []services.ChatMessage, onDelta func(delta string)) (string, error) {
	converted := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, anthropic.Message{Role: m.Role, Content: m.Content})
	}
	return s.c.StreamChat(ctx, system, converted, onDelta)
}

type openaiStreamer struct {
	c openai.Client
}

func (s openaiStreamer) StreamChat(ctx context.Context, system string, messages []services.ChatMessage, onDelta func(delta string)) (string, error) {
	converted := make([]openai.Message, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.Message{Role: m.Role, Content: m.Content})
	}
	return s.c.StreamChat(ctx, system, converted, onDelta)
}
