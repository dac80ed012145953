package mealplan

import "errors"

var (
	// ErrSlotOccupied indicates the coordinate already holds a meal.
	ErrSlotOccupied = errors.New("meal slot already occupied")
	// ErrInvalidCoordinate indicates an unknown day or meal type.
	ErrInvalidCoordinate = errors.New("invalid day or meal type")
	// ErrMissingID indicates a slot without an identifier.
	ErrMissingID = errors.New("meal slot id is required")
	// ErrDuplicateID indicates two slots sharing one identifier.
	ErrDuplicateID = errors.New("meal slot id already in use")
	// ErrPlanLocked indicates an export currently holds the plan.
	ErrPlanLocked = errors.New("meal plan is locked for export")
)
