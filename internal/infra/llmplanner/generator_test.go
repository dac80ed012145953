package llmplanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	"github.com/yanqian/mealplanner/internal/infra/llm/chatgpt"
)

func TestGenerator_GeneratePlan(t *testing.T) {
	client := &stubCompleter{content: `{"meals":[
		{"day":"Monday","mealType":"Breakfast","recipe":{"title":"Shakshuka","prepTime":25,"difficulty":"Medium","cuisineType":"Middle Eastern","ingredients":["4 eggs"],"instructions":["Simmer."]}},
		{"day":"Monday","mealType":"Lunch","recipe":{"ingredients":[],"instructions":[]}},
		{"day":"Monday","mealType":"Dinner"}
	]}`}
	gen := newTestGenerator(client)

	meals, err := gen.GeneratePlan(context.Background(), []string{"Peanuts", "Sesame"})
	require.NoError(t, err)
	require.Len(t, meals, 2)

	require.Equal(t, "meal-id-2", meals[0].ID)
	require.Equal(t, "recipe-id-1", meals[0].Recipe.ID)
	require.Equal(t, 25, meals[0].Recipe.PrepTime)
	require.Equal(t, DefaultImageURL, meals[0].Recipe.Image)

	defaults := meals[1].Recipe
	require.Equal(t, "Unnamed Recipe", defaults.Title)
	require.Equal(t, 30, defaults.PrepTime)
	require.Equal(t, mealplan.DifficultyMedium, defaults.Difficulty)
	require.Equal(t, "Various", defaults.CuisineType)

	prompt := client.last.Messages[1].Content
	require.Contains(t, prompt, "MUST NOT contain any of the following allergens: Peanuts, Sesame.")
	require.Equal(t, "json_object", client.last.ResponseFormat.Type)
	require.Equal(t, 200, gen.Usage().TotalTokens)
}

func TestGenerator_PromptWithoutAllergies(t *testing.T) {
	require.True(t, strings.Contains(userPrompt(nil), "allergens: None."))
}

func TestGenerator_ParsesFencedArray(t *testing.T) {
	client := &stubCompleter{content: "```json\n[{\"day\":\"Sunday\",\"mealType\":\"Dinner\",\"recipe\":{\"title\":\"Roast\"}}]\n```"}
	meals, err := newTestGenerator(client).GeneratePlan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	require.Equal(t, "Roast", meals[0].Recipe.Title)
}

func TestGenerator_TolerantPrepTimeAndImageLookup(t *testing.T) {
	client := &stubCompleter{content: `{"meals":[
		{"day":"Tuesday","mealType":"Lunch","recipe":{"title":"Lentil Soup","prepTime":"20","imageKeyword":"red lentil soup"}},
		{"day":"Tuesday","mealType":"Dinner","recipe":{"title":"Paella","prepTime":45.5}},
		{"day":"Wednesday","mealType":"Lunch","recipe":{"title":"Salad","prepTime":"quick","image":"https://img/salad.jpg"}},
		{"day":"Wednesday","mealType":"Dinner","recipe":{"title":"Mystery"}}
	]}`}
	finder := &stubFinder{found: map[string]string{
		"red lentil soup": "https://photos/lentils.jpg",
		"Paella":          "https://photos/paella.jpg",
	}}
	gen := newTestGenerator(client).WithImageFinder(finder)

	meals, err := gen.GeneratePlan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, meals, 4)

	require.Equal(t, 20, meals[0].Recipe.PrepTime)
	require.Equal(t, "https://photos/lentils.jpg", meals[0].Recipe.Image)
	require.Equal(t, 45, meals[1].Recipe.PrepTime)
	require.Equal(t, "https://photos/paella.jpg", meals[1].Recipe.Image)
	require.Equal(t, 30, meals[2].Recipe.PrepTime, "unreadable prep time falls back to the default")
	require.Equal(t, "https://img/salad.jpg", meals[2].Recipe.Image)
	require.Equal(t, DefaultImageURL, meals[3].Recipe.Image)
	require.ElementsMatch(t, []string{"red lentil soup", "Paella", "Mystery"}, finder.queries())
}

func TestGenerator_Errors(t *testing.T) {
	_, err := newTestGenerator(&stubCompleter{content: "sorry, I cannot"}).GeneratePlan(context.Background(), nil)
	require.EqualError(t, err, "could not parse the response from the recipe generation service")

	_, err = newTestGenerator(&stubCompleter{err: &chatgpt.APIError{StatusCode: 429}}).GeneratePlan(context.Background(), nil)
	require.EqualError(t, err, "an error occurred with an external API: status 429")

	_, err = newTestGenerator(&stubCompleter{err: errors.New("dial tcp: refused")}).GeneratePlan(context.Background(), nil)
	require.ErrorContains(t, err, "dial tcp: refused")
}

func newTestGenerator(client Completer) *Generator {
	gen := NewGenerator(Config{}, client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var seq int
	gen.newID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return gen
}

type stubCompleter struct {
	content string
	err     error
	last    chatgpt.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return chatgpt.ChatCompletionResponse{}, s.err
	}
	var resp chatgpt.ChatCompletionResponse
	resp.Choices = append(resp.Choices, struct {
		Message      chatgpt.Message `json:"message"`
		FinishReason string          `json:"finish_reason"`
	}{Message: chatgpt.Message{Role: "assistant", Content: s.content}})
	resp.Usage.PromptTokens = 120
	resp.Usage.CompletionTokens = 80
	resp.Usage.TotalTokens = 200
	return resp, nil
}

type stubFinder struct {
	mu    sync.Mutex
	found map[string]string
	asked []string
}

func (f *stubFinder) Find(_ context.Context, keyword string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, keyword)
	url, ok := f.found[keyword]
	return url, ok
}

func (f *stubFinder) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}
