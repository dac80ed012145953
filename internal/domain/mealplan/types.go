package mealplan

import "strings"

// Day is one of the seven weekday names the plan grid is indexed over.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
	Sunday    Day = "Sunday"
)

// Days lists the weekdays in canonical display order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// MealType identifies the meal of the day.
type MealType string

const (
	Breakfast MealType = "Breakfast"
	Lunch     MealType = "Lunch"
	Dinner    MealType = "Dinner"
)

// MealTypes lists the meal types in canonical display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// Difficulty grades how hard a recipe is to cook.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Recipe is the in-memory shape of a scheduled recipe.
type Recipe struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	PrepTime     int        `json:"prepTime"`
	Difficulty   Difficulty `json:"difficulty"`
	CuisineType  string     `json:"cuisineType"`
	Image        string     `json:"image,omitempty"`
	Ingredients  []string   `json:"ingredients"`
	Instructions []string   `json:"instructions"`
}

// MealSlot binds a recipe to a (day, meal type) coordinate.
type MealSlot struct {
	ID       string   `json:"id"`
	Day      Day      `json:"day"`
	MealType MealType `json:"mealType"`
	Recipe   Recipe   `json:"recipe"`
}

// Coordinate addresses one cell of the weekly grid.
type Coordinate struct {
	Day      Day
	MealType MealType
}

// Cell is a grid position and whatever is scheduled there.
type Cell struct {
	Day      Day       `json:"day"`
	MealType MealType  `json:"mealType"`
	Slot     *MealSlot `json:"slot,omitempty"`
}

// Config holds runtime knobs for the meal plan service.
type Config struct {
	ImageKeyPrefix string
}

// ParseDay resolves a weekday name case-insensitively.
func ParseDay(value string) (Day, bool) {
	trimmed := strings.TrimSpace(value)
	for i, d := range Days {
		if strings.EqualFold(string(d), trimmed) {
			return Days[i], true
		}
	}
	return "", false
}

// ParseMealType resolves a meal type case-insensitively.
func ParseMealType(value string) (MealType, bool) {
	trimmed := strings.TrimSpace(value)
	for i, m := range MealTypes {
		if strings.EqualFold(string(m), trimmed) {
			return MealTypes[i], true
		}
	}
	return "", false
}

// ParseDifficulty resolves a difficulty case-insensitively.
func ParseDifficulty(value string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	default:
		return "", false
	}
}

// Valid reports whether the coordinate lies on the 7x3 grid.
func (c Coordinate) Valid() bool {
	return dayIndex(c.Day) >= 0 && mealIndex(c.MealType) >= 0
}

func (s MealSlot) coordinate() Coordinate {
	return Coordinate{Day: s.Day, MealType: s.MealType}
}

func dayIndex(d Day) int {
	for i, candidate := range Days {
		if candidate == d {
			return i
		}
	}
	return -1
}

func mealIndex(m MealType) int {
	for i, candidate := range MealTypes {
		if candidate == m {
			return i
		}
	}
	return -1
}

// clone deep-copies the slot so the store never shares recipe slices with callers.
func (s MealSlot) clone() MealSlot {
	out := s
	out.Recipe = s.Recipe.clone()
	return out
}

func (r Recipe) clone() Recipe {
	out := r
	out.Ingredients = append(make([]string, 0, len(r.Ingredients)), r.Ingredients...)
	out.Instructions = append(make([]string, 0, len(r.Instructions)), r.Instructions...)
	return out
}
