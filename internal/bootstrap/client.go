package bootstrap

import (
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai/ollama"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai/openai"
)

// NewCompletionClient builds the completion client selected by
// AI_ADAPTER. Anything other than "ollama" gets the OpenAI-compatible
// client, which also covers self-hosted OpenAI-style endpoints via
// AI_CHAT_URL.
func NewCompletionClient() (ai.CompletionClient, error) {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		return ollama.NewOllamaClient(ollama.NewOllamaClientParams{
			Model:   util.GetEnv("AI_CHAT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT", 1)),
		})
	default:
		return openai.NewOpenAIClient(openai.NewOpenAIClientParams{
			Model:   util.GetEnv("AI_CHAT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),
		}), nil
	}
}
