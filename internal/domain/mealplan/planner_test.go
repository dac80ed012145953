package mealplan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/mealplanner/internal/domain/blob"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

func TestPlanner_GenerateReplacesPlan(t *testing.T) {
	gen := &stubGenerator{meals: []GeneratedMeal{
		{ID: "meal-1", Day: "Monday", MealType: "Breakfast", Recipe: Recipe{ID: "r1", Title: "Pancakes", PrepTime: 15, Difficulty: "Easy"}},
		{Day: "tuesday", MealType: "dinner", Recipe: Recipe{Title: "Curry", Difficulty: "whatever", PrepTime: -5}},
		{ID: "meal-3", Day: "Caturday", MealType: "Lunch", Recipe: Recipe{Title: "Ghost"}},
	}}
	planner := newTestPlanner(gen, nil)
	require.NoError(t, planner.Store().Add(testSlot("old", Sunday, Dinner, "Old")))

	snap, err := planner.Generate(context.Background(), []string{"Peanuts"})
	require.NoError(t, err)
	require.Equal(t, []string{"Peanuts"}, gen.lastAllergies)
	require.Equal(t, 2, snap.Len())

	_, ok := planner.Store().Get(Sunday, Dinner)
	require.False(t, ok)

	tuesday, ok := planner.Store().Get(Tuesday, Dinner)
	require.True(t, ok)
	require.Equal(t, "meal-id-1", tuesday.ID)
	require.Equal(t, "recipe-id-2", tuesday.Recipe.ID)
	require.Equal(t, DifficultyMedium, tuesday.Recipe.Difficulty)
	require.Zero(t, tuesday.Recipe.PrepTime)
	require.NotNil(t, tuesday.Recipe.Ingredients)
}

func TestPlanner_GenerateFailureKeepsPlan(t *testing.T) {
	gen := &stubGenerator{err: errors.New("HTTP error! status: 500")}
	planner := newTestPlanner(gen, nil)
	require.NoError(t, planner.Store().Add(testSlot("keep", Monday, Lunch, "Soup")))
	before := planner.Snapshot()

	_, err := planner.Generate(context.Background(), nil)
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "generate_failed"))
	require.Equal(t, "HTTP error! status: 500", apperrors.Message(err))
	require.Equal(t, before, planner.Snapshot())
	require.False(t, planner.Generating())
}

func TestPlanner_GenerateRejectsReentrantCall(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gen := &stubGenerator{
		block:   release,
		entered: entered,
		meals:   []GeneratedMeal{{ID: "m", Day: "Monday", MealType: "Lunch", Recipe: Recipe{Title: "Salad"}}},
	}
	planner := newTestPlanner(gen, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = planner.Generate(context.Background(), nil)
	}()
	<-entered
	require.True(t, planner.Generating())

	_, err := planner.Generate(context.Background(), nil)
	require.True(t, apperrors.IsCode(err, "plan_busy"))

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.Equal(t, 1, planner.Store().Len())
	require.Equal(t, 1, gen.callCount())
}

func TestPlanner_GenerateDropsResponseAfterClose(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gen := &stubGenerator{
		block:   release,
		entered: entered,
		meals:   []GeneratedMeal{{ID: "m", Day: "Monday", MealType: "Lunch", Recipe: Recipe{Title: "Salad"}}},
	}
	planner := newTestPlanner(gen, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := planner.Generate(context.Background(), nil)
		errCh <- err
	}()
	<-entered
	planner.Close()
	close(release)

	err := <-errCh
	require.True(t, apperrors.IsCode(err, "session_closed"))
	require.Zero(t, planner.Store().Len())
}

func TestPlanner_AddMealDuplicateCoordinateRejected(t *testing.T) {
	planner := newTestPlanner(nil, nil)

	first, err := planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Monday", MealType: "Breakfast", Title: "Recipe A", PrepTime: "10",
	})
	require.NoError(t, err)

	_, err = planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Monday", MealType: "Breakfast", Title: "Recipe B", PrepTime: "5",
	})
	require.True(t, apperrors.IsCode(err, "slot_occupied"))

	got, ok := planner.Store().Get(Monday, Breakfast)
	require.True(t, ok)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "Recipe A", got.Recipe.Title)
	require.Equal(t, 1, planner.Store().Len())
}

func TestPlanner_AddMealParsesForm(t *testing.T) {
	planner := newTestPlanner(nil, nil)

	slot, err := planner.AddMeal(context.Background(), AddMealRequest{
		Day:          "wednesday",
		MealType:     "Dinner",
		Title:        "  Lentil Soup ",
		PrepTime:     "35",
		Difficulty:   "medium",
		CuisineType:  "Indian",
		Ingredients:  "1 cup lentils\n\n  2 carrots \r\n1 cup lentils\n",
		Instructions: "Rinse\nSimmer",
	})
	require.NoError(t, err)
	require.Equal(t, Wednesday, slot.Day)
	require.Equal(t, Dinner, slot.MealType)
	require.Equal(t, "Lentil Soup", slot.Recipe.Title)
	require.Equal(t, 35, slot.Recipe.PrepTime)
	require.Equal(t, DifficultyMedium, slot.Recipe.Difficulty)
	require.Equal(t, []string{"1 cup lentils", "2 carrots", "1 cup lentils"}, slot.Recipe.Ingredients)
	require.Equal(t, []string{"Rinse", "Simmer"}, slot.Recipe.Instructions)
	require.Equal(t, "meal-id-1", slot.ID)
	require.Equal(t, "recipe-id-2", slot.Recipe.ID)
}

func TestPlanner_AddMealValidation(t *testing.T) {
	tests := []struct {
		name string
		req  AddMealRequest
	}{
		{"unknown day", AddMealRequest{Day: "Someday", MealType: "Lunch", Title: "x", PrepTime: "1"}},
		{"unknown meal", AddMealRequest{Day: "Monday", MealType: "Brunch", Title: "x", PrepTime: "1"}},
		{"blank title", AddMealRequest{Day: "Monday", MealType: "Lunch", Title: "   ", PrepTime: "1"}},
		{"missing prep time", AddMealRequest{Day: "Monday", MealType: "Lunch", Title: "x"}},
		{"non numeric prep time", AddMealRequest{Day: "Monday", MealType: "Lunch", Title: "x", PrepTime: "ten"}},
		{"negative prep time", AddMealRequest{Day: "Monday", MealType: "Lunch", Title: "x", PrepTime: "-3"}},
		{"bad difficulty", AddMealRequest{Day: "Monday", MealType: "Lunch", Title: "x", PrepTime: "3", Difficulty: "Extreme"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			planner := newTestPlanner(nil, nil)
			_, err := planner.AddMeal(context.Background(), tc.req)
			require.True(t, apperrors.IsCode(err, "invalid_input"), "got %v", err)
			require.Zero(t, planner.Store().Len())
		})
	}
}

func TestPlanner_AddMealStoresUpload(t *testing.T) {
	images := &stubStorage{objects: map[string][]byte{}}
	planner := newTestPlanner(nil, images)

	slot, err := planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Friday", MealType: "Lunch", Title: "Toast", PrepTime: "5",
		Upload: &ImageUpload{Filename: "toast.JPG", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})
	require.NoError(t, err)
	key, ok := blob.KeyFromRef(slot.Recipe.Image)
	require.True(t, ok)
	require.Equal(t, "meal-images/id-1.jpg", key)
	require.Equal(t, []byte{0xff, 0xd8}, images.objects[key])
}

func TestPlanner_AddMealDropsUploadWhenRejected(t *testing.T) {
	images := &stubStorage{objects: map[string][]byte{}}
	planner := newTestPlanner(nil, images)
	_, err := planner.Store().LockForExport()
	require.NoError(t, err)

	_, err = planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Friday", MealType: "Lunch", Title: "Toast", PrepTime: "5",
		Upload: &ImageUpload{Filename: "toast.png", MimeType: "image/png", Data: []byte{0x89, 'P'}},
	})
	require.True(t, apperrors.IsCode(err, "plan_locked"))
	require.Empty(t, images.objects)
	require.Zero(t, planner.DeleteUploads(context.Background()))
}

func TestPlanner_DeleteUploads(t *testing.T) {
	images := &stubStorage{objects: map[string][]byte{"meal-images/other.png": {1}}}
	planner := newTestPlanner(nil, images)

	for _, day := range []string{"Monday", "Tuesday"} {
		_, err := planner.AddMeal(context.Background(), AddMealRequest{
			Day: day, MealType: "Lunch", Title: "Toast", PrepTime: "5",
			Upload: &ImageUpload{Filename: "toast.png", MimeType: "image/png", Data: []byte{0x89, 'P'}},
		})
		require.NoError(t, err)
	}
	require.Len(t, images.objects, 3)

	require.Equal(t, 2, planner.DeleteUploads(context.Background()))
	require.Equal(t, map[string][]byte{"meal-images/other.png": {1}}, images.objects)
	require.Zero(t, planner.DeleteUploads(context.Background()))
}

func TestPlanner_AddMealRejectsNonImageUpload(t *testing.T) {
	planner := newTestPlanner(nil, &stubStorage{objects: map[string][]byte{}})
	_, err := planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Friday", MealType: "Lunch", Title: "Toast", PrepTime: "5",
		Upload: &ImageUpload{Filename: "notes.txt", MimeType: "text/plain", Data: []byte("hi")},
	})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestPlanner_RemoveAndSelection(t *testing.T) {
	planner := newTestPlanner(nil, nil)
	slot, err := planner.AddMeal(context.Background(), AddMealRequest{
		Day: "Monday", MealType: "Lunch", Title: "Soup", PrepTime: "20",
	})
	require.NoError(t, err)

	selected, err := planner.SelectMeal(slot.ID)
	require.NoError(t, err)
	require.Equal(t, slot, selected)
	current, ok := planner.Selected()
	require.True(t, ok)
	require.Equal(t, slot.ID, current.ID)

	require.NoError(t, planner.RemoveMeal(context.Background(), slot.ID))
	require.NoError(t, planner.RemoveMeal(context.Background(), slot.ID))
	_, ok = planner.Selected()
	require.False(t, ok)

	_, err = planner.SelectMeal("missing")
	require.True(t, apperrors.IsCode(err, "not_found"))
}

func TestTextValueUnmarshal(t *testing.T) {
	var req AddMealRequest
	require.NoError(t, jsonUnmarshal(`{"prepTime": 25}`, &req))
	require.Equal(t, TextValue("25"), req.PrepTime)
	require.NoError(t, jsonUnmarshal(`{"prepTime": "30"}`, &req))
	require.Equal(t, TextValue("30"), req.PrepTime)
	require.Error(t, jsonUnmarshal(`{"prepTime": true}`, &req))
}

func newTestPlanner(gen Generator, images blob.ObjectStorage) *Planner {
	planner := NewPlanner(Config{}, NewStore(), gen, images, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var seq int
	var mu sync.Mutex
	planner.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return planner
}

type stubGenerator struct {
	mu            sync.Mutex
	meals         []GeneratedMeal
	err           error
	block         chan struct{}
	entered       chan struct{}
	calls         int
	lastAllergies []string
}

func (s *stubGenerator) GeneratePlan(ctx context.Context, allergies []string) ([]GeneratedMeal, error) {
	s.mu.Lock()
	s.calls++
	s.lastAllergies = allergies
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.meals, nil
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStorage struct {
	objects map[string][]byte
}

func (s *stubStorage) Put(_ context.Context, key string, data []byte, mimeType string) (blob.StoredObject, error) {
	s.objects[key] = data
	return blob.StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (s *stubStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func jsonUnmarshal(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
