package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/pario-ai/oracle/pkg/models"
)

// Gemini speaks the Gemini generateContent protocol through the genai SDK.
type Gemini struct {
	httpClient *http.Client
}

// NewGemini creates the Gemini strategy.
func NewGemini(httpClient *http.Client) *Gemini {
	return &Gemini{httpClient: httpClient}
}

// Complete implements Provider.
func (g *Gemini) Complete(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Result, error) {
	if ep.Token == "" {
		return nil, fmt.Errorf("%s: %w", ep.ID, ErrMissingToken)
	}
	params := Sample(ep, req)

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     ep.Token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:   ep.URL,
			Headers:   http.Header{"User-Agent": []string{userAgent}},
			ExtraBody: ep.Extra,
		},
	})
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if params.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*params.TopP))
	}
	if params.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*params.TopK))
	}

	resp, err := cli.Models.GenerateContent(ctx, ep.Model, genai.Text(req.Query), cfg)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &DecodeError{Raw: raw, Err: errors.New("response has no candidates")}
	}

	var thinking, value strings.Builder
	sawThought := false
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Thought {
			sawThought = true
			thinking.WriteString(part.Text)
			continue
		}
		value.WriteString(part.Text)
	}

	res := &Result{Value: value.String(), Params: params, Raw: raw}
	if sawThought {
		t := thinking.String()
		res.Thinking = &t
	} else {
		res.Thinking, res.Value = ExtractThinking(res.Value)
	}
	if u := resp.UsageMetadata; u != nil {
		res.Usage = &models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return res, nil
}
