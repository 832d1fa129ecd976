package handlers

import (
	"errors"
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/validation"
)

// AnalysisHandler handles stored analysis snapshots.
type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// SaveAnalysis stores a summary snapshot for the caller. When an access
// token is included the bank connection is saved with it.
//
// Endpoint: POST /api/save_analysis (bearer)
// Request Body: {"source": "...", "summary": {...}, "access_token": "...", "item_id": "..."}
// Response: 201 Created with model.AnalysisSnapshot
// Error: 400 Bad Request if validation fails
// Error: 503 Service Unavailable if an access token is sent but no encryption key is configured
// Error: 500 Internal Server Error if saving fails
func (h *AnalysisHandler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, err := parseJSON[request.SaveAnalysisRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateSaveAnalysis(req); err != nil {
		respondValidationError(w, err)
		return
	}

	snap, err := h.analysisService.SaveAnalysis(userID, req.ToModel())
	if err != nil {
		if errors.Is(err, apperrors.ErrEncryptionNotConfigured) {
			response.RespondError(w, http.StatusServiceUnavailable, err.Error(), "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToSaveAnalysis.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, snap)
}

// LatestAnalysis returns the caller's newest stored snapshot.
//
// Endpoint: GET /api/latest_analysis (bearer)
// Response: 200 OK with model.AnalysisSnapshot
// Error: 404 Not Found if nothing was saved yet
func (h *AnalysisHandler) LatestAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	snap, err := h.analysisService.LatestSnapshot(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoAnalysis) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrNoAnalysis.Error(), "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve analysis", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, snap)
}
