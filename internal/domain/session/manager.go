package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/mealplanner/internal/domain/allergy"
	"github.com/yanqian/mealplanner/internal/domain/blob"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
	"github.com/yanqian/mealplanner/pkg/util"
)

const (
	defaultTTL           = 2 * time.Hour
	defaultSweepInterval = time.Minute
	defaultExportPrefix  = "exports"
	defaultHistoryLimit  = 20
)

// Manager owns every live planner session.
type Manager struct {
	cfg      Config
	planners *mealplan.Factory
	renderer Renderer
	storage  blob.ObjectStorage
	exports  ExportRepository
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	now   func() time.Time
	newID func() string
}

// NewManager constructs a Manager instance.
func NewManager(cfg Config, planners *mealplan.Factory, renderer Renderer, storage blob.ObjectStorage, exports ExportRepository, logger *slog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.ExportPrefix == "" {
		cfg.ExportPrefix = defaultExportPrefix
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Manager{
		cfg:      cfg,
		planners: planners,
		renderer: renderer,
		storage:  storage,
		exports:  exports,
		logger:   logger.With("component", "session.manager"),
		sessions: make(map[string]*Session),
		now:      util.NowUTC,
		newID:    uuid.NewString,
	}
}

// Open starts an empty session and returns its bearer token.
func (m *Manager) Open(_ context.Context) (Token, *Session, error) {
	now := m.now()
	holder := allergy.NewHolder()
	sess := &Session{
		ID:        m.newID(),
		CreatedAt: now,
		Planner:   m.planners.New(),
		Allergies: holder,
		Selection: allergy.NewSelection(holder),
		lastSeen:  now,
	}
	signed, expires, err := m.signToken(sess.ID, now)
	if err != nil {
		return Token{}, nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.logger.Info("session opened", "sessionId", sess.ID)
	return Token{Token: signed, SessionID: sess.ID, ExpiresAt: expires}, sess, nil
}

// Resolve maps a bearer token to its live session and refreshes its idle timer.
func (m *Manager) Resolve(_ context.Context, token string) (*Session, error) {
	id, err := m.parseToken(token)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.Wrap("session_closed", "planner session has expired or was cleared", nil)
	}
	sess.touch(m.now())
	return sess, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Subscribe registers fn for plan changes of a session.
func (m *Manager) Subscribe(id string, fn func(mealplan.Event)) (func(), error) {
	sess, ok := m.Get(id)
	if !ok {
		return nil, apperrors.Wrap("not_found", "session not found", nil)
	}
	return sess.Planner.Store().Subscribe(fn), nil
}

// Clear discards a session and its stored artifacts. Late plan responses
// for it are dropped.
func (m *Manager) Clear(ctx context.Context, id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.Planner.Close()
	m.discardArtifacts(ctx, sess)
	m.logger.Info("session cleared", "sessionId", id)
	return true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep clears sessions idle for longer than the TTL.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen()) > m.cfg.TTL {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Planner.Close()
		m.discardArtifacts(ctx, sess)
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx, m.now())
		}
	}
}
