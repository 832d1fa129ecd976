package frontend

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Finance-Insights/internal/acquire"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// AnalysisView is the store's current analysis and the cached statements of
// the signed-in account.
type AnalysisView struct {
	Analysis   *model.CurrentAnalysis  `json:"analysis"`
	Revision   uint64                  `json:"revision"`
	Statements []model.StatementRecord `json:"statements"`
	Busy       bool                    `json:"busy"`
}

// CurrentAnalysis returns what the store holds without contacting the backend.
//
// Endpoint: GET /api/analysis
// Response: 200 OK with AnalysisView; analysis is null when nothing is loaded
func (s *Server) CurrentAnalysis(w http.ResponseWriter, _ *http.Request) {
	view := AnalysisView{
		Revision:   s.store.Revision(),
		Statements: s.store.Statements(),
		Busy:       s.reconciler.Busy(),
	}
	if cur, ok := s.store.Current(); ok {
		view.Analysis = &cur
	}
	if view.Statements == nil {
		view.Statements = []model.StatementRecord{}
	}
	response.RespondJSON(w, http.StatusOK, view)
}

// Dashboard loads the signed-in account's statements and summary.
//
// Endpoint: GET /api/dashboard
// Response: 200 OK {"statements": [...], "transactions": [...], "analysis": {...}, "source": "..."}
// Error: 400 when signed out, 401 when the backend rejects the token
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.reconciler.Refresh(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, data)
}

// StatementsView is the account data after statements were added, with the
// files the selection left out.
type StatementsView struct {
	model.UserData
	Warnings []acquire.Warning `json:"warnings,omitempty"`
}

// AddStatements uploads more statements to the signed-in account. Files go
// through the same selection rules as a guest upload: non-PDFs and files past
// the cap are dropped with a warning.
//
// Endpoint: POST /api/statements
// Request Body: multipart/form-data, files under "statements"
// Response: 200 OK {"statements": [...], "analysis": {...}, "warnings": [...]}
// Error: 400 when signed out or no usable PDF was sent
func (s *Server) AddStatements(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(w, r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	sel := acquire.NewSelection()
	warnings := sel.Add(files...)
	if !sel.CanSubmit() {
		s.respondFailure(w, apperrors.Validation("add statements", apperrors.ErrNoFilesSelected))
		return
	}

	data, err := s.reconciler.AddStatements(r.Context(), sel.Files())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, StatementsView{UserData: data, Warnings: warnings})
}

// DeleteStatement removes one saved statement.
//
// Endpoint: DELETE /api/statements/{uuid}
// Response: 200 OK with the recomputed account data
// Error: 400 for an invalid id or when signed out, 404 when the backend does not know the statement
func (s *Server) DeleteStatement(w http.ResponseWriter, r *http.Request) {
	data, err := s.reconciler.RemoveStatement(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, data)
}

// Rerun recomputes the account summary from every saved statement.
//
// Endpoint: POST /api/analysis/rerun
// Response: 200 OK with the recomputed account data
// Error: 400 when signed out
func (s *Server) Rerun(w http.ResponseWriter, r *http.Request) {
	data, err := s.reconciler.Rerun(r.Context())
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, data)
}
