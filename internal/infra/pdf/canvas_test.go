package pdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
)

func TestCanvas_SplitTextWrapsToWidth(t *testing.T) {
	canvas := NewCanvas()
	canvas.AddPage()
	canvas.SetFont(9, false)

	text := "• " + strings.Repeat("finely chopped fresh coriander ", 6)
	lines := canvas.SplitText(text, 60)
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		require.LessOrEqual(t, canvas.TextWidth(line), 60.0)
	}
	require.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(lines, " "))

	long := canvas.SplitText(strings.Repeat("x", 200), 30)
	require.Greater(t, len(long), 1)
	require.Equal(t, strings.Repeat("x", 200), strings.Join(long, ""))
}

func TestCanvas_ImageFailureKeepsDocumentUsable(t *testing.T) {
	canvas := NewCanvas()
	canvas.AddPage()

	err := canvas.Image(export.Image{Data: []byte("not a png"), MimeType: "image/png"}, 15, 40, 45, 45)
	require.Error(t, err)
	require.NoError(t, canvas.Err())

	err = canvas.Image(export.Image{Data: []byte("RIFF"), MimeType: "image/webp"}, 15, 40, 45, 45)
	require.ErrorContains(t, err, "unsupported image type")

	require.NoError(t, canvas.Image(export.Image{Data: testPNG(t), MimeType: "image/png"}, 15, 40, 45, 45))
	require.NoError(t, canvas.Err())

	var buf bytes.Buffer
	require.NoError(t, canvas.Output(&buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestCanvas_ImageKeepsEarlierDocumentError(t *testing.T) {
	canvas := NewCanvas().(*Canvas)
	canvas.AddPage()
	canvas.doc.SetErrorf("font table corrupt")

	err := canvas.Image(export.Image{Data: testPNG(t), MimeType: "image/png"}, 15, 40, 45, 45)
	require.ErrorContains(t, err, "font table corrupt")
	require.EqualError(t, canvas.Err(), "font table corrupt")
}

func TestExporter_RendersRealDocument(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter := export.NewExporter(export.Config{}, NewCanvas, staticImages{data: testPNG(t)}, logger)

	recipe := mealplan.Recipe{
		ID:           "recipe-1",
		Title:        "Crème brûlée French toast",
		PrepTime:     20,
		Difficulty:   mealplan.DifficultyMedium,
		CuisineType:  "French",
		Image:        "https://img/toast.png",
		Ingredients:  make([]string, 30),
		Instructions: make([]string, 20),
	}
	for i := range recipe.Ingredients {
		recipe.Ingredients[i] = "1 cup ingredient"
	}
	for i := range recipe.Instructions {
		recipe.Instructions[i] = "Stir gently."
	}
	snap := mealplan.NewSnapshot([]mealplan.MealSlot{{ID: "meal-1", Day: mealplan.Monday, MealType: mealplan.Breakfast, Recipe: recipe}})

	result, err := exporter.Export(context.Background(), snap)
	require.NoError(t, err)
	require.Equal(t, "weekly-meal-plan.pdf", result.Filename)
	require.True(t, bytes.HasPrefix(result.Content, []byte("%PDF-")))
	require.Equal(t, 8, result.Pages)
	require.Equal(t, "Monday (continued)", result.Trace[1].Lines[1])
}

type staticImages struct {
	data []byte
}

func (s staticImages) Fetch(context.Context, string) (export.Image, error) {
	return export.Image{Data: s.data, MimeType: "image/png"}, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
