package frontend

import (
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/acquire"
	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

type completeLinkRequest struct {
	PublicToken string `json:"public_token"`
}

// UploadView is the result of a guest upload.
type UploadView struct {
	Analysis model.CurrentAnalysis `json:"analysis"`
	Files    []string              `json:"files"`
	Warnings []acquire.Warning     `json:"warnings,omitempty"`
}

// LinkStatus returns the state of the bank-link flow.
//
// Endpoint: GET /api/link
// Response: 200 OK {"state": "...", "link_token": "...", "error": "..."}
func (s *Server) LinkStatus(w http.ResponseWriter, _ *http.Request) {
	response.RespondJSON(w, http.StatusOK, s.bankLink.Status())
}

// StartLink requests a handshake token for the bank-link widget. A flow that
// already completed or failed is restarted.
//
// Endpoint: POST /api/link/start
// Response: 200 OK with the link status
// Error: 400 while a handshake is in progress, 502 when the backend is unreachable
func (s *Server) StartLink(w http.ResponseWriter, r *http.Request) {
	var (
		st  acquire.LinkStatus
		err error
	)
	switch s.bankLink.Status().State {
	case acquire.LinkComplete, acquire.LinkFailed:
		st, err = s.bankLink.Restart(r.Context())
	default:
		st, err = s.bankLink.Start(r.Context())
	}
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, st)
}

// CompleteLink exchanges the widget's public token, pulls transactions and
// adopts them as the current analysis.
//
// Endpoint: POST /api/link/complete
// Request Body: {"public_token": "..."}
// Response: 200 OK with the adopted analysis
// Error: 400 when no handshake is ready or the token is missing
func (s *Server) CompleteLink(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[completeLinkRequest](r)
	if err != nil {
		s.respondBadRequest(w, err)
		return
	}
	cur, err := s.bankLink.Complete(r.Context(), req.PublicToken)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, cur)
}

// Upload analyzes statements as a guest. Files that are not PDFs or exceed
// the batch cap are skipped with a warning; the remaining files are sent in
// one request and the result becomes the current analysis.
//
// Endpoint: POST /api/upload
// Request Body: multipart/form-data, files under "statements"
// Response: 200 OK with UploadView
// Error: 400 when no usable file remains (warnings in details)
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	files, err := readUploads(w, r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	sel := acquire.NewSelection()
	warnings := sel.Add(files...)
	if !sel.CanSubmit() {
		msg := apperrors.ErrNoFilesSelected.Error()
		if len(warnings) > 0 {
			response.RespondError(w, http.StatusBadRequest, msg, warnings)
			return
		}
		response.RespondError(w, http.StatusBadRequest, msg, "")
		return
	}

	if _, err := s.uploader.Submit(r.Context(), sel); err != nil {
		s.respondFailure(w, err)
		return
	}

	cur, _ := s.store.Current()
	response.RespondJSON(w, http.StatusOK, UploadView{
		Analysis: cur,
		Files:    sel.Names(),
		Warnings: warnings,
	})
}
