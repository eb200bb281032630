package provider

import "github.com/pario-ai/oracle/pkg/models"

// Sample returns the sampling parameters actually sent for req on ep: the
// caller's values, with the endpoint's sampling policy filling the gaps and
// the endpoint's output budget used when the caller set none.
func Sample(ep models.Endpoint, req models.WorkRequest) models.SampleParams {
	p := req.Params
	if p.MaxTokens <= 0 {
		p.MaxTokens = ep.MaxTokens
	}

	switch ep.Sampling {
	case models.SamplingGreedy:
		if p.Temperature == nil {
			p.Temperature = ptr(0.0)
		}
	case models.SamplingGreedyLogprobs:
		if p.Temperature == nil {
			p.Temperature = ptr(0.0)
		}
		if p.TopP == nil {
			p.TopP = ptr(1.0)
		}
		p.Logprobs = true
	}
	return p
}

func ptr[T any](v T) *T {
	return &v
}
