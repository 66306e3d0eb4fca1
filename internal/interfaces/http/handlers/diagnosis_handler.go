package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appdiag "github.com/diagnovera/diagnovera/internal/application/diagnosis"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// DiagnosisHandler serves diagnosis requests and stored results.
type DiagnosisHandler struct {
	svc appdiag.Service
}

func NewDiagnosisHandler(svc appdiag.Service) *DiagnosisHandler {
	return &DiagnosisHandler{svc: svc}
}

// Diagnose handles POST /api/v1/diagnose.
func (h *DiagnosisHandler) Diagnose(c *gin.Context) {
	var req clinical.EncounterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("malformed request body").WithCause(err))
		return
	}
	if len(req.Observations) == 0 {
		respondError(c, errors.New(errors.CodeEncounterInvalid, "request has no observations"))
		return
	}

	result, err := h.svc.Diagnose(c.Request.Context(), &appdiag.DiagnoseInput{
		EncounterID:  req.EncounterID,
		Observations: req.Observations,
		Prior:        req.Prior,
		TopK:         req.TopK,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get handles GET /api/v1/diagnoses/:id.
func (h *DiagnosisHandler) Get(c *gin.Context) {
	result, err := h.svc.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListByEncounter handles GET /api/v1/encounters/:encounterID/diagnoses.
func (h *DiagnosisHandler) ListByEncounter(c *gin.Context) {
	results, err := h.svc.ListByEncounter(c.Request.Context(), c.Param("encounterID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnoses": results, "total": len(results)})
}
