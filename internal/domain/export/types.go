package export

import (
	"context"
	"errors"
	"io"
)

// ErrEmptyPlan is returned when there is nothing to export.
var ErrEmptyPlan = errors.New("export: meal plan is empty")

// Canvas is the drawing surface the layout engine writes to. Coordinates are
// millimetres from the top-left corner of an A4 portrait page.
type Canvas interface {
	AddPage()
	SetFont(size float64, bold bool)
	SetTextGray(level int)
	SetDrawGray(level int)
	Text(x, y float64, text string)
	TextWidth(text string) float64
	SplitText(text string, width float64) []string
	Line(x1, y1, x2, y2 float64)
	// Image draws encoded image data. A decode failure is reported and leaves
	// the canvas usable.
	Image(img Image, x, y, w, h float64) error
	Err() error
	Output(w io.Writer) error
}

// CanvasFactory creates a fresh canvas for each export.
type CanvasFactory func() Canvas

// Image is encoded image data ready for embedding.
type Image struct {
	Data     []byte
	MimeType string
}

// ImageSource resolves a recipe image URI into embeddable bytes.
type ImageSource interface {
	Fetch(ctx context.Context, uri string) (Image, error)
}

// Config controls export output.
type Config struct {
	Filename         string
	ImageConcurrency int
}

// Page lists the text lines drawn on one page, in drawing order.
type Page struct {
	Number int      `json:"number"`
	Lines  []string `json:"lines"`
}

// Result is a rendered export.
type Result struct {
	Filename string
	Content  []byte
	Pages    int
	Meals    int
	Trace    []Page
}
