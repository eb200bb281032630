package endpoint

import "github.com/pario-ai/oracle/pkg/models"

const (
	deepseekURL   = "https://api.deepseek.com"
	hyperbolicURL = "https://api.hyperbolic.xyz/v1"
	togetherURL   = "https://api.together.xyz/v1"
	openrouterURL = "https://openrouter.ai/api/v1"
	geminiURL     = "https://generativelanguage.googleapis.com/"
)

// builtin is the table of endpoints known without any configuration.
// Tokens are filled in from the key loader when a Directory is built.
var builtin = []models.Endpoint{
	{
		ID: "deepseek-r1-20250120", Name: "deepseek", Model: "deepseek-reasoner",
		MaxTokens: 8192, URL: deepseekURL, Protocol: models.ProtocolDeepSeek,
		Sampling: models.SamplingNone,
	},
	{
		ID: "deepseek-v3-chat-20241226", Name: "together", Model: "deepseek-ai/DeepSeek-V3",
		MaxTokens: 16384, URL: togetherURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedyLogprobs,
	},
	{
		ID: "deepseek-r1-20250120-hyperbolic", Name: "hyperbolic", Model: "deepseek-ai/DeepSeek-R1",
		MaxTokens: 4096, URL: hyperbolicURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedy,
	},
	{
		ID: "deepseek-v3-20241226-hyperbolic", Name: "hyperbolic", Model: "deepseek-ai/DeepSeek-V3",
		MaxTokens: 4096, URL: hyperbolicURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedy,
	},
	{
		ID: "llama-3.1-405b-instruct-hyperbolic", Name: "hyperbolic", Model: "meta-llama/Meta-Llama-3.1-405B-Instruct",
		MaxTokens: 4096, URL: hyperbolicURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedyLogprobs,
	},
	{
		ID: "llama-3.1-405b-base-hyperbolic", Name: "hyperbolic", Model: "meta-llama/Meta-Llama-3.1-405B",
		MaxTokens: 4096, URL: hyperbolicURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedyLogprobs,
	},
	{
		ID: "deepseek-r1-20250120-together", Name: "together", Model: "deepseek-ai/DeepSeek-R1",
		MaxTokens: 32768, URL: togetherURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedyLogprobs,
	},
	{
		ID: "deepseek-v3-20241226-together", Name: "together", Model: "deepseek-ai/DeepSeek-V3",
		MaxTokens: 16384, URL: togetherURL, Protocol: models.ProtocolOpenAICompatible,
		Sampling: models.SamplingGreedyLogprobs,
	},
	{
		ID: "deepseek-r1-openrouter", Name: "openrouter", Model: "deepseek/deepseek-r1",
		MaxTokens: 8192, URL: openrouterURL, Protocol: models.ProtocolOpenRouter,
		Sampling: models.SamplingGreedy,
	},
	{
		ID: "gemini-2.0-flash", Name: "gemini", Model: "gemini-2.0-flash",
		MaxTokens: 8192, URL: geminiURL, Protocol: models.ProtocolGemini,
		Sampling: models.SamplingGreedy,
	},
}
