package export

import (
	"fmt"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
)

// A4 portrait geometry in millimetres.
const (
	PageWidth  = 210.0
	PageHeight = 297.0
	Margin     = 15.0

	HeaderTitle = "One Week Meal Plan"

	imageSize      = 45.0
	columnGap      = 5.0
	blockBase      = 80.0
	lineHeight     = 4.0
	titleLineStep  = 5.0
	blockSpacing   = 10.0
	dayHeadingStep = 15.0
	placeholder    = "Image not available"
)

// layout walks a snapshot and draws it page by page.
type layout struct {
	canvas Canvas
	images map[string]Image

	y     float64
	pages []Page
	meals int
}

func newLayout(canvas Canvas, images map[string]Image) *layout {
	return &layout{canvas: canvas, images: images}
}

func (l *layout) render(snapshot mealplan.Snapshot) {
	for _, day := range mealplan.Days {
		l.newPage()
		l.dayHeading(string(day))
		for _, mealType := range mealplan.MealTypes {
			slot, ok := snapshot.Get(day, mealType)
			if !ok {
				continue
			}
			l.meal(day, slot)
		}
	}
}

func (l *layout) newPage() {
	l.canvas.AddPage()
	l.pages = append(l.pages, Page{Number: len(l.pages) + 1})
	l.canvas.SetFont(16, true)
	l.centered(HeaderTitle, Margin)
	l.canvas.SetDrawGray(200)
	l.canvas.Line(Margin, Margin+5, PageWidth-Margin, Margin+5)
	l.y = Margin + 10
}

func (l *layout) dayHeading(text string) {
	l.canvas.SetFont(20, true)
	l.centered(text, l.y)
	l.y += dayHeadingStep
}

func (l *layout) continuation(day mealplan.Day) {
	l.newPage()
	l.dayHeading(fmt.Sprintf("%s (continued)", day))
}

func (l *layout) centered(text string, y float64) {
	x := (PageWidth - l.canvas.TextWidth(text)) / 2
	l.text(x, y, text)
}

func (l *layout) text(x, y float64, text string) {
	l.canvas.Text(x, y, text)
	last := &l.pages[len(l.pages)-1]
	last.Lines = append(last.Lines, text)
}

func (l *layout) fits(height float64) bool {
	return l.y+height <= PageHeight-Margin
}

func (l *layout) meal(day mealplan.Day, slot mealplan.MealSlot) {
	recipe := slot.Recipe
	estimate := blockBase + lineHeight*float64(len(recipe.Ingredients)) + lineHeight*float64(len(recipe.Instructions))
	if !l.fits(estimate) {
		l.continuation(day)
	}
	l.meals++

	top := l.y
	imageBottom := top + imageSize
	l.image(recipe.Image, Margin, top)

	textX := Margin + imageSize + columnGap
	width := PageWidth - textX - Margin

	l.canvas.SetFont(14, true)
	l.text(textX, l.y, string(slot.MealType))
	l.y += 6

	l.canvas.SetFont(12, true)
	titleLines := l.canvas.SplitText(recipe.Title, width)
	for _, line := range titleLines {
		l.text(textX, l.y, line)
		l.y += titleLineStep
	}
	l.y += 4

	l.canvas.SetFont(9, false)
	l.text(textX, l.y, detailLine(recipe))
	l.y += 8

	pageBefore := len(l.pages)
	l.section(day, textX, width, "Ingredients:", recipe.Ingredients, func(_ int, item string) string {
		return "• " + item
	})
	l.y += 6
	l.section(day, textX, width, "Instructions:", recipe.Instructions, func(i int, step string) string {
		return fmt.Sprintf("%d. %s", i+1, step)
	})

	// the image stays on the page the block started on
	if len(l.pages) != pageBefore || l.y > imageBottom {
		l.y += blockSpacing
		return
	}
	l.y = imageBottom + blockSpacing
}

func (l *layout) section(day mealplan.Day, x, width float64, heading string, items []string, label func(int, string) string) {
	if !l.fits(5 + lineHeight) {
		l.continuation(day)
	}
	l.canvas.SetFont(11, true)
	l.text(x, l.y, heading)
	l.y += 5

	l.canvas.SetFont(9, false)
	for i, item := range items {
		lines := l.canvas.SplitText(label(i, item), width)
		if !l.fits(lineHeight * float64(len(lines))) {
			l.continuation(day)
			l.canvas.SetFont(9, false)
		}
		for _, line := range lines {
			l.text(x, l.y, line)
			l.y += lineHeight
		}
	}
}

func (l *layout) image(uri string, x, y float64) {
	if img, ok := l.images[uri]; ok && uri != "" {
		if err := l.canvas.Image(img, x, y, imageSize, imageSize); err == nil {
			return
		}
	}
	l.canvas.SetFont(8, false)
	l.canvas.SetTextGray(150)
	l.text(x+10, y+22, placeholder)
	l.canvas.SetTextGray(0)
}

func detailLine(recipe mealplan.Recipe) string {
	cuisine := recipe.CuisineType
	if cuisine == "" {
		cuisine = "N/A"
	}
	return fmt.Sprintf("Prep: %d min | Difficulty: %s | Cuisine: %s", recipe.PrepTime, recipe.Difficulty, cuisine)
}
