package stockphoto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNoResult means the provider answered but had no matching photo.
var ErrNoResult = errors.New("stockphoto: no result")

// Searcher returns the URL of a photo matching keyword.
type Searcher interface {
	Name() string
	Search(ctx context.Context, keyword string) (string, error)
}

// Endpoints of the public search APIs. Tests point them at local servers.
const (
	PixabayURL  = "https://pixabay.com/api/"
	PexelsURL   = "https://api.pexels.com/v1/search"
	UnsplashURL = "https://api.unsplash.com/search/photos"
)

type provider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	prepare    func(req *http.Request, keyword string)
	pick       func(body []byte) (string, error)
}

func (p *provider) Name() string { return p.name }

func (p *provider) Search(ctx context.Context, keyword string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")
	p.prepare(req, keyword)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s search error: status=%d", p.name, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("decode %s response: %w", p.name, err)
	}
	found, err := p.pick(raw)
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNoResult
	}
	return found, nil
}

// NewPixabay searches pixabay.com with an API key.
func NewPixabay(endpoint, apiKey string, timeout time.Duration) Searcher {
	return &provider{
		name:       "pixabay",
		endpoint:   orDefault(endpoint, PixabayURL),
		httpClient: &http.Client{Timeout: timeout},
		prepare: func(req *http.Request, keyword string) {
			q := url.Values{}
			q.Set("key", apiKey)
			q.Set("q", keyword)
			q.Set("image_type", "photo")
			q.Set("safesearch", "true")
			q.Set("per_page", "3")
			req.URL.RawQuery = q.Encode()
		},
		pick: func(body []byte) (string, error) {
			var payload struct {
				Hits []struct {
					WebformatURL string `json:"webformatURL"`
				} `json:"hits"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", fmt.Errorf("decode pixabay response: %w", err)
			}
			if len(payload.Hits) == 0 {
				return "", ErrNoResult
			}
			return payload.Hits[0].WebformatURL, nil
		},
	}
}

// NewPexels searches pexels.com with an API key.
func NewPexels(endpoint, apiKey string, timeout time.Duration) Searcher {
	return &provider{
		name:       "pexels",
		endpoint:   orDefault(endpoint, PexelsURL),
		httpClient: &http.Client{Timeout: timeout},
		prepare: func(req *http.Request, keyword string) {
			req.Header.Set("Authorization", apiKey)
			q := url.Values{}
			q.Set("query", keyword)
			q.Set("per_page", "1")
			req.URL.RawQuery = q.Encode()
		},
		pick: func(body []byte) (string, error) {
			var payload struct {
				Photos []struct {
					Src struct {
						Large string `json:"large"`
					} `json:"src"`
				} `json:"photos"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", fmt.Errorf("decode pexels response: %w", err)
			}
			if len(payload.Photos) == 0 {
				return "", ErrNoResult
			}
			return payload.Photos[0].Src.Large, nil
		},
	}
}

// NewUnsplash searches unsplash.com with an access key.
func NewUnsplash(endpoint, accessKey string, timeout time.Duration) Searcher {
	return &provider{
		name:       "unsplash",
		endpoint:   orDefault(endpoint, UnsplashURL),
		httpClient: &http.Client{Timeout: timeout},
		prepare: func(req *http.Request, keyword string) {
			req.Header.Set("Authorization", "Client-ID "+accessKey)
			q := url.Values{}
			q.Set("query", keyword)
			q.Set("per_page", "1")
			req.URL.RawQuery = q.Encode()
		},
		pick: func(body []byte) (string, error) {
			var payload struct {
				Results []struct {
					URLs struct {
						Regular string `json:"regular"`
					} `json:"urls"`
				} `json:"results"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", fmt.Errorf("decode unsplash response: %w", err)
			}
			if len(payload.Results) == 0 {
				return "", ErrNoResult
			}
			return payload.Results[0].URLs.Regular, nil
		},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
