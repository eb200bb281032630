package models

import "strconv"

// SampleParams holds the sampling settings sent with a completion request.
// Nil pointers mean "let the provider or endpoint policy decide".
type SampleParams struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Logprobs    bool     `json:"logprobs,omitempty" yaml:"logprobs,omitempty"`
}

// WorkRequest is one unit of dispatched work.
type WorkRequest struct {
	Key    string       `json:"key"`
	Query  string       `json:"query"`
	Model  string       `json:"model,omitempty"`
	Params SampleParams `json:"params,omitzero"`
	// Ctr only discriminates cache entries; bumping it bypasses an earlier
	// journal record for the same key and model.
	Ctr int `json:"ctr,omitempty"`
}

// CacheKey identifies the journal slot for this request.
func (r WorkRequest) CacheKey() string {
	return r.Key + "\x00" + r.Model + "\x00" + strconv.Itoa(r.Ctr)
}
