package llmplanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	"github.com/yanqian/mealplanner/internal/infra/llm/chatgpt"
	"github.com/yanqian/mealplanner/pkg/metrics"
)

// DefaultImageURL is used for generated recipes that carry no picture.
const DefaultImageURL = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c?w=800&q=80"

// Completer is the subset of the chat client the generator needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// ImageFinder looks up a stock photo for a short description.
type ImageFinder interface {
	Find(ctx context.Context, keyword string) (string, bool)
}

// Config selects the model.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int

	// ImageLookups bounds concurrent photo searches.
	ImageLookups int
}

// Generator builds weekly plans directly from a chat model.
type Generator struct {
	cfg    Config
	client Completer
	logger *slog.Logger
	usage  metrics.UsageCounter
	images ImageFinder
	newID  func() string
}

// NewGenerator constructs the generator.
func NewGenerator(cfg Config, client Completer, logger *slog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.ImageLookups <= 0 {
		cfg.ImageLookups = 4
	}
	return &Generator{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "llmplanner.generator"),
		newID:  uuid.NewString,
	}
}

// WithImageFinder enables per-recipe photo lookup.
func (g *Generator) WithImageFinder(finder ImageFinder) *Generator {
	g.images = finder
	return g
}

// Usage reports the tokens consumed by all generations so far.
func (g *Generator) Usage() metrics.TokenUsage {
	return g.usage.Total()
}

// GeneratePlan asks the model for 21 meals that avoid the given allergens.
func (g *Generator) GeneratePlan(ctx context.Context, allergies []string) ([]mealplan.GeneratedMeal, error) {
	resp, err := g.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:          g.cfg.Model,
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: &chatgpt.ResponseFormat{Type: "json_object"},
		Messages: []chatgpt.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(allergies)},
		},
	})
	if err != nil {
		var apiErr *chatgpt.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("an error occurred with an external API: status %d", apiErr.StatusCode)
		}
		return nil, fmt.Errorf("an error occurred with an external API: %w", err)
	}

	meals, err := parsePlan(resp.Content())
	if err != nil {
		g.logger.Warn("unparseable plan from model", "error", err)
		return nil, errors.New("could not parse the response from the recipe generation service")
	}

	out := make([]mealplan.GeneratedMeal, 0, len(meals))
	keywords := make([]string, 0, len(meals))
	for _, m := range meals {
		if m.Recipe == nil {
			continue
		}
		out = append(out, g.toDomain(m))
		keywords = append(keywords, m.Recipe.keyword())
	}
	g.attachImages(ctx, out, keywords)
	usage := resp.TokenUsage()
	if !usage.IsZero() {
		g.usage.Add(usage)
	}
	g.logger.Info("plan generated", "meals", len(out), "allergies", len(allergies), "totalTokens", usage.TotalTokens)
	return out, nil
}

const systemPrompt = "You are a meal planning assistant. You reply with JSON only."

func userPrompt(allergies []string) string {
	allergyInfo := "None"
	if len(allergies) > 0 {
		allergyInfo = strings.Join(allergies, ", ")
	}
	var b strings.Builder
	b.WriteString("Generate a complete 7-day meal plan, including Breakfast, Lunch, and Dinner for each day from Monday to Sunday. ")
	b.WriteString("Ensure the plan is varied, creative, and balanced, with no repeated meals. ")
	b.WriteString("The recipes should be suitable for a home cook.\n")
	fmt.Fprintf(&b, "CRITICAL: The meal plan MUST NOT contain any of the following allergens: %s.\n\n", allergyInfo)
	b.WriteString(`Respond with a JSON object {"meals": [...]} whose array holds exactly 21 meal objects shaped like:
{"day": "Monday", "mealType": "Breakfast", "recipe": {"title": "...", "prepTime": 20, "difficulty": "Easy|Medium|Hard", "cuisineType": "American", "ingredients": ["2 large Eggs"], "instructions": ["Step 1."], "imageKeyword": "fluffy blueberry pancakes"}}`)
	return b.String()
}

type planEnvelope struct {
	Meals []generatedMeal `json:"meals"`
}

type generatedMeal struct {
	Day      string           `json:"day"`
	MealType string           `json:"mealType"`
	Recipe   *generatedRecipe `json:"recipe"`
}

type generatedRecipe struct {
	Title        string          `json:"title"`
	PrepTime     json.RawMessage `json:"prepTime"`
	Difficulty   string          `json:"difficulty"`
	CuisineType  *string         `json:"cuisineType"`
	Image        string          `json:"image"`
	ImageKeyword string          `json:"imageKeyword"`
	Ingredients  []string        `json:"ingredients"`
	Instructions []string        `json:"instructions"`
}

func (r *generatedRecipe) keyword() string {
	if k := strings.TrimSpace(r.ImageKeyword); k != "" {
		return k
	}
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return "delicious food"
}

// parsePlan accepts the wrapped object, a bare array, or either inside a
// markdown code fence.
func parsePlan(content string) ([]generatedMeal, error) {
	text := stripFence(content)
	if text == "" {
		return nil, errors.New("empty completion")
	}
	if strings.HasPrefix(text, "[") {
		var meals []generatedMeal
		if err := json.Unmarshal([]byte(text), &meals); err != nil {
			return nil, err
		}
		return meals, nil
	}
	var env planEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, err
	}
	if env.Meals == nil {
		return nil, errors.New("completion has no meals array")
	}
	return env.Meals, nil
}

func stripFence(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func (g *Generator) toDomain(m generatedMeal) mealplan.GeneratedMeal {
	r := m.Recipe
	recipe := mealplan.Recipe{
		ID:           "recipe-" + g.newID(),
		Title:        r.Title,
		PrepTime:     30,
		Difficulty:   mealplan.Difficulty(r.Difficulty),
		CuisineType:  "Various",
		Image:        r.Image,
		Ingredients:  r.Ingredients,
		Instructions: r.Instructions,
	}
	if recipe.Title == "" {
		recipe.Title = "Unnamed Recipe"
	}
	if minutes, ok := mealplan.PrepMinutes(r.PrepTime); ok {
		recipe.PrepTime = minutes
	}
	if r.CuisineType != nil {
		recipe.CuisineType = *r.CuisineType
	}
	if recipe.Difficulty == "" {
		recipe.Difficulty = mealplan.DifficultyMedium
	}
	return mealplan.GeneratedMeal{
		ID:       "meal-" + g.newID(),
		Day:      m.Day,
		MealType: m.MealType,
		Recipe:   recipe,
	}
}

// attachImages fills in missing recipe images from the finder, falling back
// to DefaultImageURL.
func (g *Generator) attachImages(ctx context.Context, meals []mealplan.GeneratedMeal, keywords []string) {
	if g.images != nil {
		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(g.cfg.ImageLookups)
		for i := range meals {
			if meals[i].Recipe.Image != "" {
				continue
			}
			group.Go(func() error {
				if found, ok := g.images.Find(gctx, keywords[i]); ok {
					meals[i].Recipe.Image = found
				}
				return nil
			})
		}
		_ = group.Wait()
	}
	for i := range meals {
		if meals[i].Recipe.Image == "" {
			meals[i].Recipe.Image = DefaultImageURL
		}
	}
}

var _ mealplan.Generator = (*Generator)(nil)
