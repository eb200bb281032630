package provider

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pario-ai/oracle/pkg/models"
)

// reasoningFields lists the response message fields that carry thinking
// text, in order of preference.
var reasoningFields = []string{"reasoning_content", "reasoning"}

// OpenAI speaks the chat completions protocol shared by DeepSeek, Together,
// Hyperbolic, OpenRouter and other OpenAI-compatible hosts.
type OpenAI struct {
	httpClient *http.Client
}

// NewOpenAI creates the chat completions strategy.
func NewOpenAI(httpClient *http.Client) *OpenAI {
	return &OpenAI{httpClient: httpClient}
}

// Complete implements Provider.
func (p *OpenAI) Complete(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Result, error) {
	params := Sample(ep, req)

	body := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(ep.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(req.Query)},
	}
	if params.MaxTokens > 0 {
		body.MaxTokens = oai.Int(int64(params.MaxTokens))
	}
	if params.Temperature != nil {
		body.Temperature = oai.Float(*params.Temperature)
	}
	if params.TopP != nil {
		body.TopP = oai.Float(*params.TopP)
	}
	if params.Logprobs {
		body.Logprobs = oai.Bool(true)
	}

	var raw []byte
	reqOpts := []option.RequestOption{
		option.WithBaseURL(ep.URL),
		option.WithAPIKey(ep.Token),
		option.WithHeader("User-Agent", userAgent),
		option.WithMaxRetries(0),
		option.WithResponseBodyInto(&raw),
		option.WithJSONSet("stream", false),
	}
	if p.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(p.httpClient))
	}
	if params.TopK != nil {
		reqOpts = append(reqOpts, option.WithJSONSet("top_k", *params.TopK))
	}
	for _, k := range slices.Sorted(maps.Keys(ep.Extra)) {
		reqOpts = append(reqOpts, option.WithJSONSet(k, ep.Extra[k]))
	}

	client := oai.NewClient(reqOpts...)
	if _, err := client.Chat.Completions.New(ctx, body); err != nil {
		return nil, err
	}
	return decodeChat(raw, params)
}

func decodeChat(raw []byte, params models.SampleParams) (*Result, error) {
	var completion oai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &DecodeError{Raw: raw, Err: errors.New("response has no choices")}
	}

	msg := completion.Choices[0].Message
	res := &Result{
		Value:  msg.Content,
		Params: params,
		Raw:    raw,
	}
	if thinking, ok := reasoning(msg); ok {
		res.Thinking = &thinking
	} else {
		res.Thinking, res.Value = ExtractThinking(msg.Content)
	}
	if completion.JSON.Usage.Valid() {
		res.Usage = &models.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		}
	}
	return res, nil
}

func reasoning(msg oai.ChatCompletionMessage) (string, bool) {
	for _, name := range reasoningFields {
		field, ok := msg.JSON.ExtraFields[name]
		if !ok || !field.Valid() {
			continue
		}
		var text string
		if err := json.Unmarshal([]byte(field.Raw()), &text); err != nil {
			continue
		}
		return text, true
	}
	return "", false
}
