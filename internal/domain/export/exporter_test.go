package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

func TestExporter_EmptyPlanRejectedBeforeAnyPage(t *testing.T) {
	created := 0
	exporter := NewExporter(Config{}, func() Canvas {
		created++
		return &recordingCanvas{}
	}, nil, testLogger())

	_, err := exporter.Export(context.Background(), mealplan.NewSnapshot(nil))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmptyPlan)
	require.True(t, apperrors.IsCode(err, "empty_plan"))
	require.Zero(t, created)
}

func TestExporter_OneDayPerPage(t *testing.T) {
	canvas := &recordingCanvas{}
	exporter := NewExporter(Config{}, func() Canvas { return canvas }, nil, testLogger())

	snap := mealplan.NewSnapshot([]mealplan.MealSlot{
		meal("m1", mealplan.Monday, mealplan.Breakfast, 2, 2),
		meal("m2", mealplan.Wednesday, mealplan.Dinner, 3, 1),
	})
	result, err := exporter.Export(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, "weekly-meal-plan.pdf", result.Filename)
	require.Equal(t, 7, result.Pages)
	require.Equal(t, 2, result.Meals)
	require.Equal(t, 7, canvas.pages)
	require.Equal(t, []byte("%PDF-fake"), result.Content)

	for i, day := range mealplan.Days {
		page := result.Trace[i]
		require.Equal(t, i+1, page.Number)
		require.Equal(t, HeaderTitle, page.Lines[0])
		require.Equal(t, string(day), page.Lines[1])
	}
	require.Contains(t, result.Trace[0].Lines, "Prep: 10 min | Difficulty: Easy | Cuisine: Italian")
	require.Contains(t, result.Trace[2].Lines, "Dinner")
	require.Len(t, result.Trace[1].Lines, 2)
}

func TestExporter_LongRecipeContinuesWithoutLosingLines(t *testing.T) {
	canvas := &recordingCanvas{}
	exporter := NewExporter(Config{}, func() Canvas { return canvas }, nil, testLogger())

	slot := meal("m1", mealplan.Monday, mealplan.Breakfast, 30, 20)
	result, err := exporter.Export(context.Background(), mealplan.NewSnapshot([]mealplan.MealSlot{slot}))
	require.NoError(t, err)

	require.Equal(t, []string{HeaderTitle, "Monday"}, result.Trace[0].Lines)
	require.Equal(t, "Monday (continued)", result.Trace[1].Lines[1])
	require.Equal(t, 8, result.Pages)

	assertLinesPreserved(t, result.Trace, slot)
}

func TestExporter_BreaksInsideIngredientList(t *testing.T) {
	canvas := &recordingCanvas{}
	exporter := NewExporter(Config{}, func() Canvas { return canvas }, nil, testLogger())

	first := meal("m1", mealplan.Tuesday, mealplan.Breakfast, 3, 3)
	second := meal("m2", mealplan.Tuesday, mealplan.Lunch, 60, 40)
	result, err := exporter.Export(context.Background(), mealplan.NewSnapshot([]mealplan.MealSlot{first, second}))
	require.NoError(t, err)

	continued := 0
	for _, page := range result.Trace {
		if len(page.Lines) > 1 && page.Lines[1] == "Tuesday (continued)" {
			continued++
		}
	}
	require.GreaterOrEqual(t, continued, 2, "block break and mid-list break both carry the heading")

	assertLinesPreserved(t, result.Trace, second)
	for _, y := range canvas.textY {
		require.LessOrEqual(t, y, PageHeight-Margin)
	}
}

func TestExporter_ImageFailuresDegradeToPlaceholder(t *testing.T) {
	canvas := &recordingCanvas{rejectMime: "image/webp"}
	images := &stubImages{
		ok: map[string]Image{
			"https://img/ok.jpg":   {Data: []byte{0xff, 0xd8}, MimeType: "image/jpeg"},
			"https://img/bad.webp": {Data: []byte("RIFF"), MimeType: "image/webp"},
		},
	}
	exporter := NewExporter(Config{}, func() Canvas { return canvas }, images, testLogger())

	withImage := func(id string, mt mealplan.MealType, uri string) mealplan.MealSlot {
		slot := meal(id, mealplan.Monday, mt, 1, 1)
		slot.Recipe.Image = uri
		return slot
	}
	snap := mealplan.NewSnapshot([]mealplan.MealSlot{
		withImage("a", mealplan.Breakfast, "https://img/ok.jpg"),
		withImage("b", mealplan.Lunch, "https://img/missing.jpg"),
		withImage("c", mealplan.Dinner, "https://img/bad.webp"),
	})

	result, err := exporter.Export(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, 1, canvas.images)

	placeholders := 0
	for _, line := range result.Trace[0].Lines {
		if line == "Image not available" {
			placeholders++
		}
	}
	require.Equal(t, 2, placeholders)
	require.Equal(t, 3, images.calls)
}

func TestExporter_CanvasErrorAborts(t *testing.T) {
	canvas := &recordingCanvas{err: errors.New("font missing")}
	exporter := NewExporter(Config{}, func() Canvas { return canvas }, nil, testLogger())

	_, err := exporter.Export(context.Background(), mealplan.NewSnapshot([]mealplan.MealSlot{
		meal("m1", mealplan.Friday, mealplan.Lunch, 1, 1),
	}))
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "export_failed"))
}

// assertLinesPreserved checks every ingredient and step of a slot is drawn exactly once, in order.
func assertLinesPreserved(t *testing.T, trace []Page, slot mealplan.MealSlot) {
	t.Helper()
	var ingredients, steps []string
	for _, page := range trace {
		for _, line := range page.Lines {
			switch {
			case strings.HasPrefix(line, "• "+slot.ID+" "):
				ingredients = append(ingredients, strings.TrimPrefix(line, "• "))
			case len(line) > 0 && line[0] >= '0' && line[0] <= '9':
				if _, step, ok := strings.Cut(line, ". "); ok && strings.HasPrefix(step, slot.ID+" ") {
					steps = append(steps, step)
				}
			}
		}
	}
	require.Equal(t, slot.Recipe.Ingredients, ingredients)
	require.Equal(t, slot.Recipe.Instructions, steps)
}

func meal(id string, day mealplan.Day, mealType mealplan.MealType, ingredients, steps int) mealplan.MealSlot {
	recipe := mealplan.Recipe{
		ID:          "recipe-" + id,
		Title:       "Recipe " + id,
		PrepTime:    10,
		Difficulty:  mealplan.DifficultyEasy,
		CuisineType: "Italian",
	}
	for i := 0; i < ingredients; i++ {
		recipe.Ingredients = append(recipe.Ingredients, fmt.Sprintf("%s ingredient %d", id, i+1))
	}
	for i := 0; i < steps; i++ {
		recipe.Instructions = append(recipe.Instructions, fmt.Sprintf("%s step %d", id, i+1))
	}
	return mealplan.MealSlot{ID: id, Day: day, MealType: mealType, Recipe: recipe}
}

type recordingCanvas struct {
	pages      int
	images     int
	textY      []float64
	rejectMime string
	err        error
}

func (c *recordingCanvas) AddPage()                   { c.pages++ }
func (c *recordingCanvas) SetFont(float64, bool)      {}
func (c *recordingCanvas) SetTextGray(int)            {}
func (c *recordingCanvas) SetDrawGray(int)            {}
func (c *recordingCanvas) Line(_, _, _, _ float64)    {}
func (c *recordingCanvas) TextWidth(s string) float64 { return float64(len(s)) * 2 }
func (c *recordingCanvas) Err() error                 { return c.err }

func (c *recordingCanvas) Text(_, y float64, _ string) {
	c.textY = append(c.textY, y)
}

func (c *recordingCanvas) SplitText(text string, width float64) []string {
	limit := int(width / 2)
	var lines []string
	for len(text) > limit {
		lines = append(lines, text[:limit])
		text = text[limit:]
	}
	return append(lines, text)
}

func (c *recordingCanvas) Image(img Image, _, _, _, _ float64) error {
	if img.MimeType == c.rejectMime {
		return errors.New("unsupported image type")
	}
	c.images++
	return nil
}

func (c *recordingCanvas) Output(w io.Writer) error {
	_, err := w.Write([]byte("%PDF-fake"))
	return err
}

type stubImages struct {
	mu    sync.Mutex
	ok    map[string]Image
	calls int
}

func (s *stubImages) Fetch(_ context.Context, uri string) (Image, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	img, ok := s.ok[uri]
	if !ok {
		return Image{}, errors.New("404")
	}
	return img, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
