package planapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
)

const (
	defaultBaseURL = "http://localhost:8000"
	generatePath   = "/api/mealplan/generate-plan"
	maxErrorBody   = 16 << 10
)

// Client calls the recipe-planning backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds an API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx reply. Message is what the backend said, or a
// generic fallback naming the status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// GeneratePlan posts the allergy list and returns the backend's meal records.
func (c *Client) GeneratePlan(ctx context.Context, allergies []string) ([]mealplan.GeneratedMeal, error) {
	if allergies == nil {
		allergies = []string{}
	}
	payload, err := json.Marshal(generateRequest{Allergies: allergies})
	if err != nil {
		return nil, fmt.Errorf("encode plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	var records []mealRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode plan response: %w", err)
	}
	meals := make([]mealplan.GeneratedMeal, 0, len(records))
	for _, rec := range records {
		meals = append(meals, rec.toDomain())
	}
	return meals, nil
}

// IsStatus reports whether err is a backend reply with the given status.
func IsStatus(err error, status int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}

type generateRequest struct {
	Allergies []string `json:"allergies"`
}

type mealRecord struct {
	ID       string       `json:"id"`
	Day      string       `json:"day"`
	MealType string       `json:"mealType"`
	Recipe   recipeRecord `json:"recipe"`
}

type recipeRecord struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Image        string          `json:"image"`
	PrepTime     json.RawMessage `json:"prepTime"`
	Difficulty   string          `json:"difficulty"`
	CuisineType  string          `json:"cuisineType"`
	Ingredients  []string        `json:"ingredients"`
	Instructions []string        `json:"instructions"`
}

func (m mealRecord) toDomain() mealplan.GeneratedMeal {
	return mealplan.GeneratedMeal{
		ID:       m.ID,
		Day:      m.Day,
		MealType: m.MealType,
		Recipe: mealplan.Recipe{
			ID:           m.Recipe.ID,
			Title:        m.Recipe.Title,
			PrepTime:     prepMinutes(m.Recipe.PrepTime),
			Difficulty:   mealplan.Difficulty(m.Recipe.Difficulty),
			CuisineType:  m.Recipe.CuisineType,
			Image:        m.Recipe.Image,
			Ingredients:  m.Recipe.Ingredients,
			Instructions: m.Recipe.Instructions,
		},
	}
}

// prepMinutes accepts 25, 25.0 or "25"; anything else is 0.
func prepMinutes(raw json.RawMessage) int {
	minutes, _ := mealplan.PrepMinutes(raw)
	return minutes
}

// errorMessage prefers the backend's detail field, then error or message.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &payload) == nil {
		if detail := detailText(payload.Detail); detail != "" {
			return detail
		}
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

// detailText handles both a plain string and a list of validation errors.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

var _ mealplan.Generator = (*Client)(nil)
