package openai

import (
	"sync"

	"github.com/tuchaVshortah/financial-kg-agent/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient generates answers and structured verdicts through an
// OpenAI-compatible chat completion endpoint.
//
// An OpenAIClient should be created using NewOpenAIClient.
type OpenAIClient struct {
	chatModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewOpenAIClientParams defines the configuration parameters for creating
// a new OpenAIClient.
//
// Model specifies the chat/completion model.
// BaseURL and APIKey configure the chat/completion API endpoint. An empty
// BaseURL falls back to the official OpenAI endpoint.
type NewOpenAIClientParams struct {
	Model string

	BaseURL string
	APIKey  string
}

// NewOpenAIClient creates and returns a new OpenAIClient configured with
// the provided parameters.
//
// Example:
//
//	params := openai.NewOpenAIClientParams{
//		Model:   "gpt-4o-mini",
//		BaseURL: "https://api.openai.com/v1",
//		APIKey:  os.Getenv("OPENAI_API_KEY"),
//	}
//	client := openai.NewOpenAIClient(params)
func NewOpenAIClient(
	params NewOpenAIClientParams,
) *OpenAIClient {
	chatClient := newOpenaiClient(params.BaseURL, params.APIKey)

	return &OpenAIClient{
		chatModel: params.Model,

		chatURL: params.BaseURL,
		chatKey: params.APIKey,

		metricsLock: sync.Mutex{},
		metrics: ai.ModelMetrics{
			InputTokens:  0,
			OutputTokens: 0,
			TotalTokens:  0,
			DurationMs:   0,
		},

		ChatClient: chatClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
