package mealplan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/yanqian/mealplanner/internal/domain/blob"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

// AddMealRequest captures the add-meal form.
type AddMealRequest struct {
	Day          string    `json:"day" form:"day"`
	MealType     string    `json:"mealType" form:"mealType"`
	Title        string    `json:"title" form:"title"`
	PrepTime     TextValue `json:"prepTime" form:"prepTime"`
	Difficulty   string    `json:"difficulty" form:"difficulty"`
	CuisineType  string    `json:"cuisineType" form:"cuisineType"`
	Image        string    `json:"image" form:"imageUrl"`
	Ingredients  string    `json:"ingredients" form:"ingredients"`
	Instructions string    `json:"instructions" form:"instructions"`

	Upload *ImageUpload `json:"-" form:"-"`
}

// ImageUpload is an image file attached to a manual add.
type ImageUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

// TextValue accepts either a JSON string or a JSON number.
type TextValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *TextValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*v = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("prepTime must be a string or number: %w", err)
	}
	*v = TextValue(n.String())
	return nil
}

// PrepMinutes reads a prep time sent as 25, 25.5 or "25". The second
// result is false when the value is absent or unreadable.
func PrepMinutes(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
		return v, true
	}
	return 0, false
}

// AddMeal validates the form and schedules the recipe at its coordinate.
// An occupied coordinate is rejected.
func (p *Planner) AddMeal(ctx context.Context, req AddMealRequest) (MealSlot, error) {
	day, ok := ParseDay(req.Day)
	if !ok {
		return MealSlot{}, apperrors.Wrap("invalid_input", fmt.Sprintf("unknown day %q", req.Day), nil)
	}
	mealType, ok := ParseMealType(req.MealType)
	if !ok {
		return MealSlot{}, apperrors.Wrap("invalid_input", fmt.Sprintf("unknown meal type %q", req.MealType), nil)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return MealSlot{}, apperrors.Wrap("invalid_input", "title cannot be empty", nil)
	}
	prepTime, err := parsePrepTime(string(req.PrepTime))
	if err != nil {
		return MealSlot{}, apperrors.Wrap("invalid_input", "prep time must be a non-negative whole number of minutes", err)
	}
	difficulty := DifficultyEasy
	if strings.TrimSpace(req.Difficulty) != "" {
		parsed, ok := ParseDifficulty(req.Difficulty)
		if !ok {
			return MealSlot{}, apperrors.Wrap("invalid_input", fmt.Sprintf("unknown difficulty %q", req.Difficulty), nil)
		}
		difficulty = parsed
	}

	if _, occupied := p.store.Get(day, mealType); occupied {
		return MealSlot{}, apperrors.Wrap("slot_occupied", fmt.Sprintf("%s %s already has a meal", day, mealType), ErrSlotOccupied)
	}

	image := strings.TrimSpace(req.Image)
	var uploadKey string
	if req.Upload != nil && len(req.Upload.Data) > 0 {
		key, err := p.storeUpload(ctx, req.Upload)
		if err != nil {
			return MealSlot{}, err
		}
		uploadKey = key
		image = blob.Ref(key)
	}

	slot := MealSlot{
		ID:       "meal-" + p.newID(),
		Day:      day,
		MealType: mealType,
		Recipe: Recipe{
			ID:           "recipe-" + p.newID(),
			Title:        title,
			PrepTime:     prepTime,
			Difficulty:   difficulty,
			CuisineType:  strings.TrimSpace(req.CuisineType),
			Image:        image,
			Ingredients:  SplitLines(req.Ingredients),
			Instructions: SplitLines(req.Instructions),
		},
	}
	if err := p.store.Add(slot); err != nil {
		if uploadKey != "" {
			p.deleteUpload(ctx, uploadKey)
		}
		switch {
		case errors.Is(err, ErrSlotOccupied):
			return MealSlot{}, apperrors.Wrap("slot_occupied", fmt.Sprintf("%s %s already has a meal", day, mealType), err)
		case errors.Is(err, ErrPlanLocked):
			return MealSlot{}, apperrors.Wrap("plan_locked", "meal plan is being exported", err)
		default:
			return MealSlot{}, apperrors.Wrap("invalid_input", "meal could not be scheduled", err)
		}
	}
	if uploadKey != "" {
		p.uploadMu.Lock()
		p.uploads = append(p.uploads, uploadKey)
		p.uploadMu.Unlock()
	}
	p.logger.Info("meal added", "day", day, "mealType", mealType, "slotId", slot.ID)
	return slot, nil
}

func (p *Planner) storeUpload(ctx context.Context, upload *ImageUpload) (string, error) {
	if p.images == nil {
		return "", apperrors.Wrap("invalid_input", "image uploads are not enabled", nil)
	}
	mimeType := strings.TrimSpace(upload.MimeType)
	if mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
		return "", apperrors.Wrap("invalid_input", "upload must be an image", nil)
	}
	key := path.Join(p.cfg.ImageKeyPrefix, p.newID()+strings.ToLower(path.Ext(upload.Filename)))
	if _, err := p.images.Put(ctx, key, upload.Data, mimeType); err != nil {
		return "", apperrors.Wrap("upload_failed", "failed to store meal image", err)
	}
	return key, nil
}

// DeleteUploads removes every image this planner stored. It returns the
// number of objects deleted.
func (p *Planner) DeleteUploads(ctx context.Context) int {
	p.uploadMu.Lock()
	keys := p.uploads
	p.uploads = nil
	p.uploadMu.Unlock()

	deleted := 0
	for _, key := range keys {
		if p.deleteUpload(ctx, key) {
			deleted++
		}
	}
	return deleted
}

func (p *Planner) deleteUpload(ctx context.Context, key string) bool {
	if err := p.images.Delete(ctx, key); err != nil {
		p.logger.Warn("failed to delete meal image", "key", key, "error", err)
		return false
	}
	return true
}

// SplitLines turns newline-delimited text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if clean := strings.TrimSpace(line); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func parsePrepTime(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("prep time is required")
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("prep time %d is negative", value)
	}
	return value, nil
}
