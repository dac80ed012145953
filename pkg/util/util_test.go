package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAbbrev(t *testing.T) {
	require.Equal(t, "short", Abbrev("short", 10))
	require.Equal(t, "data:...", Abbrev("data:image/png;base64,AAAA", 5))
	require.Equal(t, "unchanged", Abbrev("unchanged", 0))
}

func TestNowUTC(t *testing.T) {
	require.Equal(t, time.UTC, NowUTC().Location())
	require.GreaterOrEqual(t, Since(time.Now().Add(-time.Second)), int64(1000))
}
