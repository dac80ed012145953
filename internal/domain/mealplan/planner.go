package mealplan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yanqian/mealplanner/internal/domain/blob"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

// Generator produces a complete weekly plan from an external planning service.
type Generator interface {
	GeneratePlan(ctx context.Context, allergies []string) ([]GeneratedMeal, error)
}

// GeneratedMeal is a meal record as returned by a generator, before validation.
type GeneratedMeal struct {
	ID       string
	Day      string
	MealType string
	Recipe   Recipe
}

// Planner owns one weekly plan and the operations that mutate it.
type Planner struct {
	cfg       Config
	store     *Store
	generator Generator
	images    blob.ObjectStorage
	logger    *slog.Logger

	generating atomic.Bool
	closed     atomic.Bool

	selMu    sync.Mutex
	selected string

	uploadMu sync.Mutex
	uploads  []string

	newID func() string
}

// Factory builds planners that share collaborators.
type Factory struct {
	cfg       Config
	generator Generator
	images    blob.ObjectStorage
	logger    *slog.Logger
}

// NewFactory wires up the meal plan domain.
func NewFactory(cfg Config, generator Generator, images blob.ObjectStorage, logger *slog.Logger) *Factory {
	return &Factory{cfg: cfg, generator: generator, images: images, logger: logger}
}

// New returns a planner with an empty store.
func (f *Factory) New() *Planner {
	return NewPlanner(f.cfg, NewStore(), f.generator, f.images, f.logger)
}

// NewPlanner constructs a planner over an explicitly owned store.
func NewPlanner(cfg Config, store *Store, generator Generator, images blob.ObjectStorage, logger *slog.Logger) *Planner {
	if cfg.ImageKeyPrefix == "" {
		cfg.ImageKeyPrefix = "meal-images"
	}
	return &Planner{
		cfg:       cfg,
		store:     store,
		generator: generator,
		images:    images,
		logger:    logger.With("component", "mealplan.planner"),
		newID:     uuid.NewString,
	}
}

// Store exposes the underlying plan store.
func (p *Planner) Store() *Store {
	return p.store
}

// Snapshot returns the current plan.
func (p *Planner) Snapshot() Snapshot {
	return p.store.Snapshot()
}

// Generating reports whether a generate call is outstanding.
func (p *Planner) Generating() bool {
	return p.generating.Load()
}

// Close marks the planner as torn down. Responses that arrive afterwards are dropped.
func (p *Planner) Close() {
	p.closed.Store(true)
}

// Generate replaces the plan with a freshly generated one. On failure the
// current plan is left untouched. A second call while one is in flight fails fast.
func (p *Planner) Generate(ctx context.Context, allergies []string) (Snapshot, error) {
	if p.closed.Load() {
		return Snapshot{}, apperrors.Wrap("session_closed", "planner session has been closed", nil)
	}
	if p.generator == nil {
		return Snapshot{}, apperrors.Wrap("generate_failed", "plan generation is not configured", nil)
	}
	if !p.generating.CompareAndSwap(false, true) {
		return Snapshot{}, apperrors.Wrap("plan_busy", "a meal plan is already being generated", nil)
	}
	defer p.generating.Store(false)

	p.logger.Info("generating meal plan", "allergies", len(allergies))
	meals, err := p.generator.GeneratePlan(ctx, allergies)
	if err != nil {
		p.logger.Warn("meal plan generation failed", "error", err)
		return Snapshot{}, apperrors.Wrap("generate_failed", err.Error(), err)
	}
	if p.closed.Load() {
		p.logger.Info("discarding meal plan for closed session", "meals", len(meals))
		return Snapshot{}, apperrors.Wrap("session_closed", "planner session has been closed", nil)
	}

	slots := p.normalizeGenerated(meals)
	if err := p.store.ReplaceAll(slots); err != nil {
		if errors.Is(err, ErrPlanLocked) {
			return Snapshot{}, apperrors.Wrap("plan_locked", "meal plan is being exported", err)
		}
		return Snapshot{}, apperrors.Wrap("generate_failed", "generated plan was rejected", err)
	}
	p.dropStaleSelection()
	p.logger.Info("meal plan replaced", "meals", len(slots))
	return p.store.Snapshot(), nil
}

// RemoveMeal deletes a scheduled meal. Unknown ids succeed.
func (p *Planner) RemoveMeal(_ context.Context, slotID string) error {
	removed, err := p.store.Remove(slotID)
	if err != nil {
		return apperrors.Wrap("plan_locked", "meal plan is being exported", err)
	}
	if removed {
		p.selMu.Lock()
		if p.selected == slotID {
			p.selected = ""
		}
		p.selMu.Unlock()
	}
	return nil
}

// SelectMeal marks a scheduled meal as the one shown in the detail view.
func (p *Planner) SelectMeal(slotID string) (MealSlot, error) {
	slot, ok := p.store.GetByID(slotID)
	if !ok {
		return MealSlot{}, apperrors.Wrap("not_found", "meal not found", nil)
	}
	p.selMu.Lock()
	p.selected = slotID
	p.selMu.Unlock()
	return slot, nil
}

// Selected returns the meal in the detail view, if any.
func (p *Planner) Selected() (MealSlot, bool) {
	p.selMu.Lock()
	id := p.selected
	p.selMu.Unlock()
	if id == "" {
		return MealSlot{}, false
	}
	return p.store.GetByID(id)
}

// ClearSelection closes the detail view.
func (p *Planner) ClearSelection() {
	p.selMu.Lock()
	p.selected = ""
	p.selMu.Unlock()
}

func (p *Planner) dropStaleSelection() {
	p.selMu.Lock()
	defer p.selMu.Unlock()
	if p.selected == "" {
		return
	}
	if _, ok := p.store.GetByID(p.selected); !ok {
		p.selected = ""
	}
}

func (p *Planner) normalizeGenerated(meals []GeneratedMeal) []MealSlot {
	slots := make([]MealSlot, 0, len(meals))
	for _, meal := range meals {
		day, okDay := ParseDay(meal.Day)
		mealType, okMeal := ParseMealType(meal.MealType)
		if !okDay || !okMeal {
			p.logger.Warn("skipping generated meal with unknown coordinate", "day", meal.Day, "mealType", meal.MealType)
			continue
		}
		id := meal.ID
		if id == "" {
			id = "meal-" + p.newID()
		}
		slots = append(slots, MealSlot{
			ID:       id,
			Day:      day,
			MealType: mealType,
			Recipe:   p.normalizeRecipe(meal.Recipe),
		})
	}
	return dedupeIDs(slots, p.newID)
}

func (p *Planner) normalizeRecipe(r Recipe) Recipe {
	out := r.clone()
	if out.ID == "" {
		out.ID = "recipe-" + p.newID()
	}
	if out.Title == "" {
		out.Title = "Unnamed Recipe"
	}
	if out.PrepTime < 0 {
		out.PrepTime = 0
	}
	if d, ok := ParseDifficulty(string(out.Difficulty)); ok {
		out.Difficulty = d
	} else {
		out.Difficulty = DifficultyMedium
	}
	return out
}

func dedupeIDs(slots []MealSlot, newID func() string) []MealSlot {
	seen := make(map[string]struct{}, len(slots))
	for i := range slots {
		if _, dup := seen[slots[i].ID]; dup {
			slots[i].ID = "meal-" + newID()
		}
		seen[slots[i].ID] = struct{}{}
	}
	return slots
}
