package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsageCounter_Accumulates(t *testing.T) {
	var counter UsageCounter
	require.True(t, counter.Total().IsZero())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Add(TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})
		}()
	}
	wg.Wait()

	require.Equal(t, TokenUsage{PromptTokens: 30, CompletionTokens: 20, TotalTokens: 50}, counter.Total())
	require.Equal(t, 10, counter.Calls())
}
