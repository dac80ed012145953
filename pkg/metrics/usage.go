package metrics

import "sync"

// TokenUsage captures LLM token counts used to satisfy a request.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// IsZero reports whether usage data is absent.
func (u TokenUsage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// Plus returns the sum of both usages.
func (u TokenUsage) Plus(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// UsageCounter accumulates token usage across requests. The zero value is ready to use.
type UsageCounter struct {
	mu    sync.Mutex
	total TokenUsage
	calls int
}

// Add records one request.
func (c *UsageCounter) Add(u TokenUsage) {
	c.mu.Lock()
	c.total = c.total.Plus(u)
	c.calls++
	c.mu.Unlock()
}

// Total returns the accumulated usage.
func (c *UsageCounter) Total() TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Calls reports how many requests were recorded.
func (c *UsageCounter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
