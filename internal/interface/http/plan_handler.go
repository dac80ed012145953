package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	"github.com/yanqian/mealplanner/internal/domain/session"
)

const (
	defaultMaxUploadBytes = 8 << 20
	eventBuffer           = 16
)

type planResponse struct {
	Cells      []mealplan.Cell    `json:"cells"`
	Meals      int                `json:"meals"`
	Generating bool               `json:"generating"`
	Exporting  bool               `json:"exporting"`
	Selected   *mealplan.MealSlot `json:"selected,omitempty"`
}

type planEvent struct {
	Kind   string `json:"kind"`
	SlotID string `json:"slotId,omitempty"`
	Size   int    `json:"size"`
}

func (h *Handler) planView(sess *session.Session, snapshot mealplan.Snapshot) planResponse {
	resp := planResponse{
		Cells:      slices.Collect(snapshot.Grid()),
		Meals:      snapshot.Len(),
		Generating: sess.Planner.Generating(),
		Exporting:  sess.Planner.Store().Locked(),
	}
	if selected, ok := sess.Planner.Selected(); ok {
		resp.Selected = &selected
	}
	return resp
}

// GetPlan returns the full 7x3 grid in display order.
func (h *Handler) GetPlan(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, h.planView(sess, sess.Planner.Snapshot()))
}

// GeneratePlan replaces the plan using the committed allergy set.
func (h *Handler) GeneratePlan(c *gin.Context, sess *session.Session) {
	snapshot, err := sess.Generate(c.Request.Context())
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.planView(sess, snapshot))
}

// AddMeal schedules a manually entered recipe. Multipart bodies may carry an
// image file in the "image" part; a plain URL goes in "imageUrl".
func (h *Handler) AddMeal(c *gin.Context, sess *session.Session) {
	var req mealplan.AddMealRequest
	if strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
			return
		}
		upload, err := readUpload(c)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read image upload", err))
			return
		}
		req.Upload = upload
	} else if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	slot, err := sess.Planner.AddMeal(c.Request.Context(), req)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func readUpload(c *gin.Context) (*mealplan.ImageUpload, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &mealplan.ImageUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// RemoveMeal deletes a scheduled meal. Unknown ids are not an error.
func (h *Handler) RemoveMeal(c *gin.Context, sess *session.Session) {
	if err := sess.Planner.RemoveMeal(c.Request.Context(), c.Param("id")); err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectMeal opens the detail view of a meal.
func (h *Handler) SelectMeal(c *gin.Context, sess *session.Session) {
	slot, err := sess.Planner.SelectMeal(c.Param("id"))
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// ClearSelection closes the detail view.
func (h *Handler) ClearSelection(c *gin.Context, sess *session.Session) {
	sess.Planner.ClearSelection()
	c.Status(http.StatusNoContent)
}

// ExportPlan renders the plan as a PDF download.
func (h *Handler) ExportPlan(c *gin.Context, sess *session.Session) {
	result, err := h.sessions.Export(c.Request.Context(), sess)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("X-Export-Pages", strconv.Itoa(result.Pages))
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

// ListExports returns the archived exports of the session, newest first.
func (h *Handler) ListExports(c *gin.Context, sess *session.Session) {
	records, err := h.sessions.Exports(c.Request.Context(), sess)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

// StreamPlanEvents pushes plan mutations to the client using Server-Sent Events.
// The first frame reports the current plan size.
func (h *Handler) StreamPlanEvents(c *gin.Context, sess *session.Session) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	events := make(chan mealplan.Event, eventBuffer)
	cancel, err := h.sessions.Subscribe(sess.ID, func(evt mealplan.Event) {
		select {
		case events <- evt:
		default:
			h.logger.Warn("dropping plan event for slow subscriber", "sessionId", sess.ID, "kind", evt.Kind)
		}
	})
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	write := func(evt planEvent) {
		payload, err := json.Marshal(evt)
		if err != nil {
			h.logger.Error("marshal plan event failed", "error", err)
			return
		}
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}

	write(planEvent{Kind: "snapshot", Size: sess.Planner.Snapshot().Len()})
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			write(planEvent{Kind: string(evt.Kind), SlotID: evt.SlotID, Size: evt.Size})
		}
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
