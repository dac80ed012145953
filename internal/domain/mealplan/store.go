package mealplan

import (
	"fmt"
	"iter"
	"sync"
)

// EventKind describes a store mutation.
type EventKind string

const (
	EventReplaced EventKind = "replaced"
	EventAdded    EventKind = "added"
	EventRemoved  EventKind = "removed"
)

// Event is delivered to subscribers after a mutation has been applied.
type Event struct {
	Kind   EventKind
	SlotID string
	Size   int
}

// Store holds the authoritative set of scheduled meals for one planner.
// At most one slot exists per (day, meal type).
type Store struct {
	mu     sync.RWMutex
	slots  map[Coordinate]MealSlot
	byID   map[string]Coordinate
	locked bool

	subMu     sync.Mutex
	subSeq    int
	listeners map[int]func(Event)
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		slots:     make(map[Coordinate]MealSlot),
		byID:      make(map[string]Coordinate),
		listeners: make(map[int]func(Event)),
	}
}

// Get returns the slot scheduled at the coordinate.
func (s *Store) Get(day Day, mealType MealType) (MealSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[Coordinate{Day: day, MealType: mealType}]
	if !ok {
		return MealSlot{}, false
	}
	return slot.clone(), true
}

// GetByID returns the slot with the given identifier.
func (s *Store) GetByID(id string) (MealSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coord, ok := s.byID[id]
	if !ok {
		return MealSlot{}, false
	}
	return s.slots[coord].clone(), true
}

// Add inserts a slot. An occupied coordinate is rejected rather than replaced.
func (s *Store) Add(slot MealSlot) error {
	if !slot.coordinate().Valid() {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCoordinate, slot.Day, slot.MealType)
	}
	if slot.ID == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrPlanLocked
	}
	coord := slot.coordinate()
	if _, exists := s.slots[coord]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s %s", ErrSlotOccupied, slot.Day, slot.MealType)
	}
	if _, exists := s.byID[slot.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.slots[coord] = slot.clone()
	s.byID[slot.ID] = coord
	size := len(s.slots)
	s.mu.Unlock()

	s.publish(Event{Kind: EventAdded, SlotID: slot.ID, Size: size})
	return nil
}

// Remove deletes the slot with the identifier. Unknown ids are a no-op.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return false, ErrPlanLocked
	}
	coord, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.byID, id)
	delete(s.slots, coord)
	size := len(s.slots)
	s.mu.Unlock()

	s.publish(Event{Kind: EventRemoved, SlotID: id, Size: size})
	return true, nil
}

// ReplaceAll swaps the entire slot collection. The new index is built before the
// write lock is taken so readers observe either the old or the new plan.
// When two slots share a coordinate the later one wins.
func (s *Store) ReplaceAll(slots []MealSlot) error {
	next := make(map[Coordinate]MealSlot, len(slots))
	nextIDs := make(map[string]Coordinate, len(slots))
	for _, slot := range slots {
		coord := slot.coordinate()
		if !coord.Valid() {
			return fmt.Errorf("%w: %s/%s", ErrInvalidCoordinate, slot.Day, slot.MealType)
		}
		if slot.ID == "" {
			return ErrMissingID
		}
		if prev, ok := next[coord]; ok {
			delete(nextIDs, prev.ID)
		}
		if _, dup := nextIDs[slot.ID]; dup {
			return ErrDuplicateID
		}
		next[coord] = slot.clone()
		nextIDs[slot.ID] = coord
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrPlanLocked
	}
	s.slots = next
	s.byID = nextIDs
	size := len(next)
	s.mu.Unlock()

	s.publish(Event{Kind: EventReplaced, Size: size})
	return nil
}

// Len reports the number of scheduled meals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Snapshot returns an immutable copy of the current plan.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Grid yields every grid coordinate in canonical order. Each iteration reads a
// fresh snapshot, so the sequence is restartable.
func (s *Store) Grid() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		s.Snapshot().Grid()(yield)
	}
}

// LockForExport freezes the store against mutation and returns the frozen plan.
// Only one holder is allowed at a time.
func (s *Store) LockForExport() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return Snapshot{}, ErrPlanLocked
	}
	s.locked = true
	return s.snapshotLocked(), nil
}

// Unlock releases the export lock.
func (s *Store) Unlock() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}

// Locked reports whether an export currently holds the store.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// Subscribe registers a listener for mutations and returns a cancel func.
// Listeners run synchronously on the mutating goroutine after the lock is released.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	s.listeners[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(evt Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	copied := make(map[Coordinate]MealSlot, len(s.slots))
	for coord, slot := range s.slots {
		copied[coord] = slot.clone()
	}
	return Snapshot{slots: copied}
}

// Snapshot is a read-only view of a plan at one point in time.
type Snapshot struct {
	slots map[Coordinate]MealSlot
}

// NewSnapshot builds a snapshot from loose slots. Invalid coordinates are dropped.
func NewSnapshot(slots []MealSlot) Snapshot {
	out := Snapshot{slots: make(map[Coordinate]MealSlot, len(slots))}
	for _, slot := range slots {
		if slot.coordinate().Valid() {
			out.slots[slot.coordinate()] = slot.clone()
		}
	}
	return out
}

// Get returns the slot at a coordinate.
func (s Snapshot) Get(day Day, mealType MealType) (MealSlot, bool) {
	slot, ok := s.slots[Coordinate{Day: day, MealType: mealType}]
	if !ok {
		return MealSlot{}, false
	}
	return slot.clone(), true
}

// Len reports the number of scheduled meals.
func (s Snapshot) Len() int {
	return len(s.slots)
}

// Grid yields all 21 coordinates, day then meal type.
func (s Snapshot) Grid() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for _, day := range Days {
			for _, mealType := range MealTypes {
				cell := Cell{Day: day, MealType: mealType}
				if slot, ok := s.slots[Coordinate{Day: day, MealType: mealType}]; ok {
					copied := slot.clone()
					cell.Slot = &copied
				}
				if !yield(cell) {
					return
				}
			}
		}
	}
}

// Slots returns the occupied slots in canonical order.
func (s Snapshot) Slots() []MealSlot {
	out := make([]MealSlot, 0, len(s.slots))
	for cell := range s.Grid() {
		if cell.Slot != nil {
			out = append(out, *cell.Slot)
		}
	}
	return out
}
