package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mealplanner/internal/domain/session"
)

// Handler wires the HTTP transport to the planner sessions.
type Handler struct {
	sessions       *session.Manager
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(sessions *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:       sessions,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger.With("component", "http.handler"),
	}
}

// WithMaxUploadBytes bounds multipart meal submissions.
func (h *Handler) WithMaxUploadBytes(limit int64) *Handler {
	if limit > 0 {
		h.maxUploadBytes = limit
	}
	return h
}

type sessionHandlerFunc func(c *gin.Context, sess *session.Session)

// withSession hands the resolved session to fn.
func (h *Handler) withSession(fn sessionHandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess == nil {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
			return
		}
		fn(c, sess)
	}
}

// OpenSession starts a planner session and returns its bearer token.
func (h *Handler) OpenSession(c *gin.Context) {
	tok, _, err := h.sessions.Open(c.Request.Context())
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tok)
}

// CloseSession discards the caller's plan and allergy selection.
func (h *Handler) CloseSession(c *gin.Context, sess *session.Session) {
	h.sessions.Clear(c.Request.Context(), sess.ID)
	c.Status(http.StatusNoContent)
}

// Health reports liveness and the number of open sessions.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.sessions.Len()})
}
