package allergy

import (
	"sync"

	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

// Selection is the working copy edited while the allergy picker is open.
// Edits stay local until Commit publishes them to the Holder.
type Selection struct {
	mu      sync.Mutex
	holder  *Holder
	working Set
	open    bool
}

// NewSelection binds a selection editor to the committed set it publishes to.
func NewSelection(holder *Holder) *Selection {
	return &Selection{holder: holder}
}

// Begin opens the editor with a copy of the committed set. Reopening discards
// any uncommitted edits.
func (s *Selection) Begin() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = s.holder.Current()
	s.open = true
	return s.working.clone()
}

// Open reports whether an edit is in progress.
func (s *Selection) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Working returns the in-progress set, or the committed set when no edit is open.
func (s *Selection) Working() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return s.holder.Current()
	}
	return s.working.clone()
}

// Toggle flips a predefined allergen in the working copy.
func (s *Selection) Toggle(name string) (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOpen()
	if !s.working.toggle(name) {
		return Set{}, apperrors.Wrap("invalid_input", "unknown predefined allergen "+name, nil)
	}
	return s.working.clone(), nil
}

// AddCustom appends a free-form allergen. Blank text and entries already
// present (case-insensitive) leave the set unchanged and report false. Text
// naming a predefined allergen selects that entry.
func (s *Selection) AddCustom(text string) (Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOpen()
	added := s.working.addCustom(text)
	return s.working.clone(), added
}

// Remove drops an entry from the working copy.
func (s *Selection) Remove(name string) (Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOpen()
	removed := s.working.remove(name)
	return s.working.clone(), removed
}

// Commit publishes the working copy and closes the editor.
func (s *Selection) Commit() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOpen()
	committed := s.working.clone()
	s.holder.swap(committed)
	s.open = false
	s.working = Set{}
	return committed.clone()
}

// Cancel discards the working copy.
func (s *Selection) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.working = Set{}
}

// Clear empties the committed set, as at startup.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holder.swap(NewSet())
	s.open = false
	s.working = Set{}
}

// edits without an explicit Begin start from the committed set.
func (s *Selection) ensureOpen() {
	if s.open {
		return
	}
	s.working = s.holder.Current()
	s.open = true
}
