package stockphoto

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProviders_ParseFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pixabay":
			require.Equal(t, "key-1", r.URL.Query().Get("key"))
			require.Equal(t, "blueberry pancakes", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"hits":[{"webformatURL":"https://px/1.jpg"},{"webformatURL":"https://px/2.jpg"}]}`))
		case "/pexels":
			require.Equal(t, "key-2", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"photos":[{"src":{"large":"https://pexels/1.jpg"}}]}`))
		case "/unsplash":
			require.Equal(t, "Client-ID key-3", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"results":[{"urls":{"regular":"https://unsplash/1.jpg"}}]}`))
		}
	}))
	defer srv.Close()

	cases := map[string]struct {
		searcher Searcher
		want     string
	}{
		"pixabay":  {NewPixabay(srv.URL+"/pixabay", "key-1", time.Second), "https://px/1.jpg"},
		"pexels":   {NewPexels(srv.URL+"/pexels", "key-2", time.Second), "https://pexels/1.jpg"},
		"unsplash": {NewUnsplash(srv.URL+"/unsplash", "key-3", time.Second), "https://unsplash/1.jpg"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := tc.searcher.Search(context.Background(), "blueberry pancakes")
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, name, tc.searcher.Name())
		})
	}
}

func TestChain_FallsThroughFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pixabay":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/pexels":
			_, _ = w.Write([]byte(`{"photos":[]}`))
		default:
			_, _ = w.Write([]byte(`{"results":[{"urls":{"regular":"https://unsplash/soup.jpg"}}]}`))
		}
	}))
	defer srv.Close()

	chain := NewChain(testLogger(),
		NewPixabay(srv.URL+"/pixabay", "k", time.Second),
		NewPexels(srv.URL+"/pexels", "k", time.Second),
		NewUnsplash(srv.URL+"/unsplash", "k", time.Second),
	)
	got, ok := chain.Find(context.Background(), "tomato soup")
	require.True(t, ok)
	require.Equal(t, "https://unsplash/soup.jpg", got)

	_, ok = chain.Find(context.Background(), "  ")
	require.False(t, ok)

	_, ok = NewChain(testLogger(), NewPexels(srv.URL+"/pexels", "k", time.Second)).Find(context.Background(), "soup")
	require.False(t, ok)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
