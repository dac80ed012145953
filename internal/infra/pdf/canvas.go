package pdf

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/yanqian/mealplanner/internal/domain/export"
)

const fontFamily = "Helvetica"

// Canvas draws export layouts onto an A4 portrait fpdf document.
type Canvas struct {
	doc       *fpdf.Fpdf
	translate func(string) string
}

// NewCanvas starts an empty document. Core fonts are cp1252, so text is
// translated before it reaches the document.
func NewCanvas() export.Canvas {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(export.Margin, export.Margin, export.Margin)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(export.HeaderTitle, true)
	doc.SetCreator("mealplanner", true)
	doc.SetFont(fontFamily, "", 12)
	return &Canvas{doc: doc, translate: doc.UnicodeTranslatorFromDescriptor("")}
}

// AddPage implements export.Canvas.
func (c *Canvas) AddPage() {
	c.doc.AddPage()
}

// SetFont implements export.Canvas.
func (c *Canvas) SetFont(size float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	c.doc.SetFont(fontFamily, style, size)
}

// SetTextGray implements export.Canvas.
func (c *Canvas) SetTextGray(level int) {
	c.doc.SetTextColor(level, level, level)
}

// SetDrawGray implements export.Canvas.
func (c *Canvas) SetDrawGray(level int) {
	c.doc.SetDrawColor(level, level, level)
}

// Text implements export.Canvas; y is the baseline.
func (c *Canvas) Text(x, y float64, text string) {
	c.doc.Text(x, y, c.translate(text))
}

// TextWidth implements export.Canvas.
func (c *Canvas) TextWidth(text string) float64 {
	return c.doc.GetStringWidth(c.translate(text))
}

// SplitText wraps on spaces; words wider than the column are broken by rune.
func (c *Canvas) SplitText(text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var (
		lines   []string
		current string
	)
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if c.TextWidth(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = ""
		for _, piece := range c.breakWord(word, width) {
			if current != "" {
				lines = append(lines, current)
			}
			current = piece
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (c *Canvas) breakWord(word string, width float64) []string {
	if c.TextWidth(word) <= width {
		return []string{word}
	}
	var (
		pieces []string
		buf    []rune
	)
	for _, r := range word {
		if len(buf) > 0 && c.TextWidth(string(append(buf, r))) > width {
			pieces = append(pieces, string(buf))
			buf = buf[:0]
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		pieces = append(pieces, string(buf))
	}
	return pieces
}

// Line implements export.Canvas.
func (c *Canvas) Line(x1, y1, x2, y2 float64) {
	c.doc.Line(x1, y1, x2, y2)
}

// Image embeds JPEG, PNG or GIF data. Decode failures are returned and
// cleared so the rest of the document still renders. An error already on the
// document is left in place.
func (c *Canvas) Image(img export.Image, x, y, w, h float64) error {
	if err := c.doc.Error(); err != nil {
		return fmt.Errorf("document already failed: %w", err)
	}
	imageType, err := imageType(img.MimeType)
	if err != nil {
		return err
	}
	sum := sha1.Sum(img.Data)
	name := hex.EncodeToString(sum[:])
	opts := fpdf.ImageOptions{ImageType: imageType}
	c.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := c.doc.Error(); err != nil {
		c.doc.ClearError()
		return fmt.Errorf("embed image: %w", err)
	}
	c.doc.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := c.doc.Error(); err != nil {
		c.doc.ClearError()
		return fmt.Errorf("draw image: %w", err)
	}
	return nil
}

// Err implements export.Canvas.
func (c *Canvas) Err() error {
	return c.doc.Error()
}

// Output implements export.Canvas.
func (c *Canvas) Output(w io.Writer) error {
	return c.doc.Output(w)
}

func imageType(mimeType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return "JPG", nil
	case "image/png":
		return "PNG", nil
	case "image/gif":
		return "GIF", nil
	default:
		return "", fmt.Errorf("unsupported image type %q", mimeType)
	}
}

var _ export.Canvas = (*Canvas)(nil)
