package session

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/mealplanner/internal/domain/allergy"
	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
)

// Config drives session lifetime and token signing.
type Config struct {
	Secret        string
	TTL           time.Duration
	SweepInterval time.Duration
	ExportPrefix  string
	HistoryLimit  int
}

// Token is handed to a client when a session opens.
type Token struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is one planner view: a weekly plan plus its allergy selection.
type Session struct {
	ID        string
	CreatedAt time.Time

	Planner   *mealplan.Planner
	Allergies *allergy.Holder
	Selection *allergy.Selection

	mu         sync.Mutex
	lastSeen   time.Time
	exportKeys []string
}

// Generate requests a new plan excluding the committed allergies.
func (s *Session) Generate(ctx context.Context) (mealplan.Snapshot, error) {
	return s.Planner.Generate(ctx, s.Allergies.Current().Values())
}

// LastSeen reports the last time the session was resolved.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) trackExport(key string) {
	s.mu.Lock()
	s.exportKeys = append(s.exportKeys, key)
	s.mu.Unlock()
}

func (s *Session) takeExportKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.exportKeys
	s.exportKeys = nil
	return keys
}

// ExportRecord describes a stored export artifact.
type ExportRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	ObjectKey string    `json:"objectKey"`
	Filename  string    `json:"filename"`
	Pages     int       `json:"pages"`
	Meals     int       `json:"meals"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExportRepository persists export history.
type ExportRepository interface {
	Save(ctx context.Context, record ExportRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ExportRecord, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// Renderer turns a plan snapshot into a document.
type Renderer interface {
	Export(ctx context.Context, snapshot mealplan.Snapshot) (export.Result, error)
}
