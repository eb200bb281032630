package models

// Protocol selects the request shaping and response extraction strategy
// for an endpoint.
type Protocol string

const (
	ProtocolDeepSeek         Protocol = "deepseek"
	ProtocolOpenAICompatible Protocol = "openai-compatible"
	ProtocolOpenRouter       Protocol = "openrouter"
	ProtocolGemini           Protocol = "gemini"
)

// Valid reports whether p is a known protocol.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolDeepSeek, ProtocolOpenAICompatible, ProtocolOpenRouter, ProtocolGemini:
		return true
	}
	return false
}

// SamplingPolicy decides which sampling parameters are filled in when the
// caller leaves them unset.
type SamplingPolicy string

const (
	// SamplingNone sends no sampling parameters at all.
	SamplingNone SamplingPolicy = "none"
	// SamplingGreedy sends temperature 0.
	SamplingGreedy SamplingPolicy = "greedy"
	// SamplingGreedyLogprobs sends temperature 0, top_p 1 and asks for logprobs.
	SamplingGreedyLogprobs SamplingPolicy = "greedy-logprobs"
)

// Endpoint describes one remote text-generation destination. Values are
// treated as immutable once a directory hands them out.
type Endpoint struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Model     string         `json:"model" yaml:"model"`
	MaxTokens int            `json:"max_tokens" yaml:"max_tokens"`
	URL       string         `json:"url" yaml:"url"`
	Token     string         `json:"-" yaml:"api_key"`
	Protocol  Protocol       `json:"protocol" yaml:"protocol"`
	Sampling  SamplingPolicy `json:"sampling,omitempty" yaml:"sampling"`
	Extra     map[string]any `json:"extra,omitempty" yaml:"extra"`
	// Rate is the maximum number of requests per second sent to this
	// endpoint. Zero means unthrottled.
	Rate float64 `json:"rate,omitempty" yaml:"rate"`
}

// ThrottleKey returns the key the rate limiter paces this endpoint under.
func (e Endpoint) ThrottleKey() string {
	return e.ID
}
