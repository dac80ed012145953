package stockphoto

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Chain asks each searcher in turn and returns the first photo found.
type Chain struct {
	searchers []Searcher
	logger    *slog.Logger
}

// NewChain builds a chain. Searchers are tried in the given order.
func NewChain(logger *slog.Logger, searchers ...Searcher) *Chain {
	return &Chain{searchers: searchers, logger: logger.With("component", "stockphoto.chain")}
}

// Len reports the number of configured searchers.
func (c *Chain) Len() int {
	return len(c.searchers)
}

// Find implements llmplanner.ImageFinder. Provider failures fall through to
// the next provider.
func (c *Chain) Find(ctx context.Context, keyword string) (string, bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", false
	}
	for _, s := range c.searchers {
		if ctx.Err() != nil {
			return "", false
		}
		found, err := s.Search(ctx, keyword)
		if err == nil {
			return found, true
		}
		if !errors.Is(err, ErrNoResult) {
			c.logger.Debug("photo search failed", "provider", s.Name(), "error", err)
		}
	}
	return "", false
}
