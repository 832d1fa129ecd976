package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/validation"
)

const (
	// maxUploadBytes caps the whole multipart request.
	maxUploadBytes = 64 << 20
	// maxUploadMemory is held in memory before parts spill to disk.
	maxUploadMemory = 16 << 20
)

// StatementHandler handles statement upload and the saved statements of an account.
type StatementHandler struct {
	statementService *service.StatementService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(statementService *service.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
	}
}

// UploadStatement parses one to twelve PDF statements sent as multipart
// form data under "statements" (or the single-file field "statement").
// Nothing is stored.
//
// Endpoint: POST /api/upload_statement
// Request Body: multipart/form-data
// Response: 200 OK with model.UploadResult
// Error: 400 Bad Request if the batch is empty, too large or contains a non-PDF
// Error: 422 Unprocessable Entity if a file cannot be parsed
func (h *StatementHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	headers := r.MultipartForm.File["statements"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["statement"]
	}

	names := make([]string, len(headers))
	for i, fh := range headers {
		names[i] = fh.Filename
		if names[i] == "" {
			names[i] = fmt.Sprintf("file_%d", i)
		}
	}
	if err := validation.ValidateUploadNames(names); err != nil {
		respondValidationError(w, err)
		return
	}

	files := make([]service.UploadedFile, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "failed to read upload", err.Error())
			return
		}
		files[i] = service.UploadedFile{Name: names[i], Data: data}
	}

	res, err := h.statementService.ParseUploads(r.Context(), files)
	if err != nil {
		var perr *service.ParseError
		switch {
		case errors.As(err, &perr):
			response.RespondError(w, http.StatusUnprocessableEntity, perr.Error(), "")
		case errors.Is(err, apperrors.ErrNoFilesSelected), errors.Is(err, apperrors.ErrTooManyFiles):
			response.RespondError(w, http.StatusBadRequest, err.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToParseStatement.Error(), err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// AnalyzeTransactions computes the summary of a transaction list.
//
// Endpoint: POST /api/analyze_transactions
// Request Body: {"transactions": [...]}
// Response: 200 OK with model.AnalysisSummary
// Error: 400 Bad Request if transactions is missing
func (h *StatementHandler) AnalyzeTransactions(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.AnalyzeTransactionsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateAnalyzeTransactions(req); err != nil {
		respondValidationError(w, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, h.statementService.Analyze(req.Transactions))
}

// SaveStatements stores one statement row per file for the caller.
//
// Endpoint: POST /api/save_statements (bearer)
// Request Body: {"statements": [{"filename": "...", "transactions": [...]}]}
// Response: 200 OK with model.SaveStatementsResult
// Error: 400 Bad Request if the list is empty
// Error: 500 Internal Server Error if saving fails
func (h *StatementHandler) SaveStatements(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, err := parseJSON[request.SaveStatementsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateSaveStatements(req); err != nil {
		respondValidationError(w, err)
		return
	}

	res, err := h.statementService.SaveStatements(userID, req.Statements)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyStatements) {
			response.RespondError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToSaveStatements.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// UserData returns every saved statement of the caller and the summary
// recomputed from them.
//
// Endpoint: GET /api/user_data (bearer)
// Response: 200 OK with model.UserData
// Error: 500 Internal Server Error if retrieval fails
func (h *StatementHandler) UserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	data, err := h.statementService.UserData(userID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveUserData.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, data)
}

// DeleteStatement removes one of the caller's statements and returns the
// remaining account data.
//
// Endpoint: DELETE /api/statements/{uuid} (bearer)
// Response: 200 OK with model.UserData
// Error: 400 Bad Request if the ID is not a UUID (validated by middleware)
// Error: 404 Not Found if the caller has no such statement
// Error: 500 Internal Server Error if deletion fails
func (h *StatementHandler) DeleteStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	statementID := chi.URLParam(r, "uuid")

	data, err := h.statementService.DeleteStatement(userID, statementID)
	if err != nil {
		if errors.Is(err, apperrors.ErrStatementNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrStatementNotFound.Error(), "")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToDeleteStatement.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, data)
}

// RerunAnalysis recomputes the caller's summary from the saved statements.
//
// Endpoint: POST /api/rerun_analysis (bearer)
// Response: 200 OK with model.UserData
// Error: 500 Internal Server Error if retrieval fails
func (h *StatementHandler) RerunAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	data, err := h.statementService.Rerun(userID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRerunAnalysis.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, data)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
