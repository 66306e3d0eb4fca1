package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	applib "github.com/diagnovera/diagnovera/internal/application/library"
	domaindiag "github.com/diagnovera/diagnovera/internal/domain/diagnosis"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// LibraryHandler serves reference-library management endpoints.
type LibraryHandler struct {
	svc applib.Service
}

func NewLibraryHandler(svc applib.Service) *LibraryHandler {
	return &LibraryHandler{svc: svc}
}

// BuildRequest is the body of POST /api/v1/library/profiles/build: raw
// extracted observations to be mapped into a profile.
type BuildRequest struct {
	DiseaseID    string                  `json:"disease_id"`
	Description  string                  `json:"description,omitempty"`
	Category     string                  `json:"category,omitempty"`
	Sources      []string                `json:"sources,omitempty"`
	Confidence   float64                 `json:"confidence,omitempty"`
	Observations clinical.ObservationSet `json:"observations"`
}

// Build handles POST /api/v1/library/profiles/build.
func (h *LibraryHandler) Build(c *gin.Context) {
	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}

	rec, err := h.svc.BuildProfile(c.Request.Context(), &applib.BuildInput{
		DiseaseID:    req.DiseaseID,
		Description:  req.Description,
		Category:     req.Category,
		Sources:      req.Sources,
		Confidence:   req.Confidence,
		Observations: req.Observations,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// Upsert handles PUT /api/v1/library/profiles/:diseaseID with a
// pre-computed profile record.
func (h *LibraryHandler) Upsert(c *gin.Context) {
	var rec clinical.ProfileRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}
	if rec.DiseaseID == "" {
		rec.DiseaseID = c.Param("diseaseID")
	} else if rec.DiseaseID != c.Param("diseaseID") {
		respondError(c, errors.InvalidParam("disease id in body does not match path"))
		return
	}

	if err := h.svc.UpsertProfile(c.Request.Context(), rec); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disease_id": rec.DiseaseID})
}

// Get handles GET /api/v1/library/profiles/:diseaseID.
func (h *LibraryHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetProfile(c.Request.Context(), c.Param("diseaseID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// List handles GET /api/v1/library/profiles.
func (h *LibraryHandler) List(c *gin.Context) {
	offset, limit := parsePaging(c)
	result, err := h.svc.ListProfiles(c.Request.Context(), domaindiag.ProfileListFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete handles DELETE /api/v1/library/profiles/:diseaseID.
func (h *LibraryHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteProfile(c.Request.Context(), c.Param("diseaseID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
