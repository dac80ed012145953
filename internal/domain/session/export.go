package session

import (
	"context"
	"errors"
	"path"

	"github.com/yanqian/mealplanner/internal/domain/export"
	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

const pdfMimeType = "application/pdf"

// Export renders the session's plan. Mutations fail while the export runs.
// Archiving the document is best-effort; the rendered result is returned
// even when storage or history writes fail.
func (m *Manager) Export(ctx context.Context, sess *Session) (export.Result, error) {
	if m.renderer == nil {
		return export.Result{}, apperrors.Wrap("export_failed", "export is not configured", nil)
	}
	store := sess.Planner.Store()
	snapshot, err := store.LockForExport()
	if err != nil {
		if errors.Is(err, mealplan.ErrPlanLocked) {
			return export.Result{}, apperrors.Wrap("plan_locked", "an export is already running", err)
		}
		return export.Result{}, apperrors.Wrap("export_failed", "could not create PDF", err)
	}
	defer store.Unlock()

	result, err := m.renderer.Export(ctx, snapshot)
	if err != nil {
		return export.Result{}, err
	}
	m.archive(ctx, sess, result)
	return result, nil
}

// Exports lists the most recent archived exports of a session.
func (m *Manager) Exports(ctx context.Context, sess *Session) ([]ExportRecord, error) {
	if m.exports == nil {
		return []ExportRecord{}, nil
	}
	records, err := m.exports.ListBySession(ctx, sess.ID, m.cfg.HistoryLimit)
	if err != nil {
		return nil, apperrors.Wrap("export_failed", "failed to load export history", err)
	}
	return records, nil
}

func (m *Manager) archive(ctx context.Context, sess *Session, result export.Result) {
	if m.storage == nil {
		return
	}
	sessionID := sess.ID
	id := m.newID()
	key := path.Join(m.cfg.ExportPrefix, sessionID, id+".pdf")
	stored, err := m.storage.Put(ctx, key, result.Content, pdfMimeType)
	if err != nil {
		m.logger.Warn("failed to archive export", "sessionId", sessionID, "error", err)
		return
	}
	sess.trackExport(stored.Key)
	if m.exports == nil {
		return
	}
	record := ExportRecord{
		ID:        id,
		SessionID: sessionID,
		ObjectKey: stored.Key,
		Filename:  result.Filename,
		Pages:     result.Pages,
		Meals:     result.Meals,
		SizeBytes: stored.Size,
		CreatedAt: m.now(),
	}
	if err := m.exports.Save(ctx, record); err != nil {
		m.logger.Warn("failed to record export", "sessionId", sessionID, "exportId", id, "error", err)
	}
}

// discardArtifacts deletes the archived exports, their history and the
// uploaded meal images of a torn-down session.
func (m *Manager) discardArtifacts(ctx context.Context, sess *Session) {
	uploads := sess.Planner.DeleteUploads(ctx)
	exports := 0
	if m.storage != nil {
		for _, key := range sess.takeExportKeys() {
			if err := m.storage.Delete(ctx, key); err != nil {
				m.logger.Warn("failed to delete archived export", "sessionId", sess.ID, "key", key, "error", err)
				continue
			}
			exports++
		}
	}
	if m.exports != nil {
		if err := m.exports.DeleteBySession(ctx, sess.ID); err != nil {
			m.logger.Warn("failed to delete export history", "sessionId", sess.ID, "error", err)
		}
	}
	if uploads > 0 || exports > 0 {
		m.logger.Info("session artifacts deleted", "sessionId", sess.ID, "uploads", uploads, "exports", exports)
	}
}
