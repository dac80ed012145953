package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mealplanner/internal/domain/allergy"
	"github.com/yanqian/mealplanner/internal/domain/session"
)

type allergyResponse struct {
	Options   []string      `json:"options"`
	Committed allergy.View  `json:"committed"`
	Editing   bool          `json:"editing"`
	Working   *allergy.View `json:"working,omitempty"`
}

type toggleRequest struct {
	Name string `json:"name" binding:"required"`
}

type customRequest struct {
	Value string `json:"value"`
}

func allergyView(sess *session.Session) allergyResponse {
	resp := allergyResponse{
		Options:   allergy.Predefined,
		Committed: sess.Allergies.Current().View(),
		Editing:   sess.Selection.Open(),
	}
	if resp.Editing {
		working := sess.Selection.Working().View()
		resp.Working = &working
	}
	return resp
}

// GetAllergies returns the committed set and any in-progress edit.
func (h *Handler) GetAllergies(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, allergyView(sess))
}

// BeginAllergyEdit opens the selector on a copy of the committed set.
func (h *Handler) BeginAllergyEdit(c *gin.Context, sess *session.Session) {
	sess.Selection.Begin()
	c.JSON(http.StatusOK, allergyView(sess))
}

// ToggleAllergy flips a predefined allergen in the working copy.
func (h *Handler) ToggleAllergy(c *gin.Context, sess *session.Session) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if _, err := sess.Selection.Toggle(req.Name); err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, allergyView(sess))
}

// AddCustomAllergy appends a free-form allergen. Blank or duplicate entries are ignored.
func (h *Handler) AddCustomAllergy(c *gin.Context, sess *session.Session) {
	var req customRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	_, added := sess.Selection.AddCustom(req.Value)
	resp := allergyView(sess)
	c.JSON(http.StatusOK, gin.H{"added": added, "allergies": resp})
}

// RemoveAllergy drops an entry from the working copy.
func (h *Handler) RemoveAllergy(c *gin.Context, sess *session.Session) {
	_, removed := sess.Selection.Remove(c.Param("name"))
	c.JSON(http.StatusOK, gin.H{"removed": removed, "allergies": allergyView(sess)})
}

// ClearAllergies resets the committed set and closes any open edit.
func (h *Handler) ClearAllergies(c *gin.Context, sess *session.Session) {
	sess.Selection.Clear()
	c.JSON(http.StatusOK, allergyView(sess))
}

// CommitAllergies publishes the working copy for the next generation.
func (h *Handler) CommitAllergies(c *gin.Context, sess *session.Session) {
	sess.Selection.Commit()
	c.JSON(http.StatusOK, allergyView(sess))
}

// CancelAllergyEdit discards the working copy.
func (h *Handler) CancelAllergyEdit(c *gin.Context, sess *session.Session) {
	sess.Selection.Cancel()
	c.JSON(http.StatusOK, allergyView(sess))
}
