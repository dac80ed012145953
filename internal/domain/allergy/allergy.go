package allergy

import (
	"strings"
	"sync"
)

// Predefined lists the common allergens offered for one-click selection.
var Predefined = []string{"Dairy", "Eggs", "Peanuts", "Tree Nuts", "Soy", "Wheat", "Fish", "Shellfish", "Gluten"}

// Set is an allergy exclusion set: a subset of Predefined plus free-form entries.
// Entries are unique case-insensitively across both groups.
type Set struct {
	predefined map[string]struct{}
	custom     []string
}

// View is the serialized form of a Set.
type View struct {
	Predefined []string `json:"predefined"`
	Custom     []string `json:"custom"`
	Values     []string `json:"values"`
}

// NewSet builds a set from loose values. Predefined names are matched
// case-insensitively; duplicates and blanks are dropped.
func NewSet(values ...string) Set {
	s := Set{predefined: make(map[string]struct{})}
	for _, v := range values {
		if name, ok := canonicalPredefined(v); ok {
			s.predefined[name] = struct{}{}
			continue
		}
		s.addCustom(v)
	}
	return s
}

// Has reports case-insensitive membership.
func (s Set) Has(name string) bool {
	key := normalize(name)
	if key == "" {
		return false
	}
	for p := range s.predefined {
		if normalize(p) == key {
			return true
		}
	}
	for _, c := range s.custom {
		if normalize(c) == key {
			return true
		}
	}
	return false
}

// Predefined returns the selected predefined allergens in canonical order.
func (s Set) Predefined() []string {
	out := make([]string, 0, len(s.predefined))
	for _, name := range Predefined {
		if _, ok := s.predefined[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Custom returns free-form entries in insertion order.
func (s Set) Custom() []string {
	return append([]string(nil), s.custom...)
}

// Values returns predefined then custom entries; this is the plan generation parameter.
func (s Set) Values() []string {
	return append(s.Predefined(), s.custom...)
}

// Len reports the number of entries.
func (s Set) Len() int {
	return len(s.predefined) + len(s.custom)
}

// View renders the set for transport.
func (s Set) View() View {
	return View{Predefined: s.Predefined(), Custom: s.Custom(), Values: s.Values()}
}

func (s Set) clone() Set {
	out := Set{predefined: make(map[string]struct{}, len(s.predefined)), custom: s.Custom()}
	for k := range s.predefined {
		out.predefined[k] = struct{}{}
	}
	return out
}

func (s *Set) toggle(name string) bool {
	canonical, ok := canonicalPredefined(name)
	if !ok {
		return false
	}
	if s.predefined == nil {
		s.predefined = make(map[string]struct{})
	}
	if _, selected := s.predefined[canonical]; selected {
		delete(s.predefined, canonical)
		return true
	}
	s.predefined[canonical] = struct{}{}
	return true
}

func (s *Set) addCustom(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	// A typed name of a common allergen selects that entry instead.
	if canonical, ok := canonicalPredefined(trimmed); ok {
		if _, selected := s.predefined[canonical]; selected {
			return false
		}
		if s.predefined == nil {
			s.predefined = make(map[string]struct{})
		}
		s.predefined[canonical] = struct{}{}
		return true
	}
	if s.Has(trimmed) {
		return false
	}
	s.custom = append(s.custom, trimmed)
	return true
}

func (s *Set) remove(name string) bool {
	if canonical, ok := canonicalPredefined(name); ok {
		if _, selected := s.predefined[canonical]; selected {
			delete(s.predefined, canonical)
			return true
		}
		return false
	}
	key := normalize(name)
	for i, c := range s.custom {
		if normalize(c) == key {
			s.custom = append(s.custom[:i], s.custom[i+1:]...)
			return true
		}
	}
	return false
}

func canonicalPredefined(value string) (string, bool) {
	key := normalize(value)
	for _, name := range Predefined {
		if normalize(name) == key {
			return name, true
		}
	}
	return "", false
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Holder owns the committed allergy set of one planner session.
type Holder struct {
	mu        sync.RWMutex
	committed Set
}

// NewHolder constructs a holder with an empty committed set.
func NewHolder() *Holder {
	return &Holder{committed: NewSet()}
}

// Current returns a copy of the committed set.
func (h *Holder) Current() Set {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.committed.clone()
}

func (h *Holder) swap(next Set) {
	h.mu.Lock()
	h.committed = next
	h.mu.Unlock()
}
