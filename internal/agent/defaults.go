package agent

import "context"

// sampledProvider fills sampling fields a prompt leaves unset.
type sampledProvider struct {
	inner           Provider
	temperature     *float64
	maxOutputTokens int
}

// WithSampling returns a provider that applies temperature and an output
// token cap to prompts that do not set their own. The inner provider is
// returned unchanged when there is nothing to apply.
func WithSampling(inner Provider, temperature *float64, maxOutputTokens int) Provider {
	if inner == nil || (temperature == nil && maxOutputTokens <= 0) {
		return inner
	}
	return sampledProvider{inner: inner, temperature: temperature, maxOutputTokens: maxOutputTokens}
}

// Stream implements Provider.
func (p sampledProvider) Stream(ctx context.Context, prompt Prompt) (Stream, error) {
	if prompt.Temperature == nil {
		prompt.Temperature = p.temperature
	}
	if prompt.MaxOutputTokens <= 0 {
		prompt.MaxOutputTokens = p.maxOutputTokens
	}
	return p.inner.Stream(ctx, prompt)
}
