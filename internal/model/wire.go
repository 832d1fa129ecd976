package model

import "time"

// LinkToken is the short-lived handshake token used to open the bank-link widget.
type LinkToken struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// ExchangeResult is the durable bank credential obtained from a public token.
type ExchangeResult struct {
	Status      string `json:"status,omitempty"`
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// PullResult is the response of a bank transaction pull.
type PullResult struct {
	Transactions []Transaction   `json:"transactions"`
	Analysis     AnalysisSummary `json:"analysis"`
	Source       Provenance      `json:"source"`
}

// UploadResult is the response of a guest statement upload.
type UploadResult struct {
	Files        []StatementFile `json:"files"`
	Transactions []Transaction   `json:"transactions"`
	Analysis     AnalysisSummary `json:"analysis"`
	Source       Provenance      `json:"source"`
}

// SaveStatementsRequest is the body of save_statements.
type SaveStatementsRequest struct {
	Statements []StatementFile `json:"statements"`
}

// SaveStatementsResult is the response of save_statements.
type SaveStatementsResult struct {
	Status       string          `json:"status"`
	Analysis     AnalysisSummary `json:"analysis"`
	Transactions []Transaction   `json:"transactions"`
}

// SaveAnalysisRequest is the body of save_analysis.
type SaveAnalysisRequest struct {
	Source      Provenance      `json:"source"`
	Summary     AnalysisSummary `json:"summary"`
	AccessToken string          `json:"access_token,omitempty"`
	ItemID      string          `json:"item_id,omitempty"`
}

// UserData is the authoritative saved state of an account: every statement
// plus the aggregate recomputed from all of them.
type UserData struct {
	Statements   []StatementRecord `json:"statements"`
	Transactions []Transaction     `json:"transactions"`
	Analysis     AnalysisSummary   `json:"analysis"`
	Source       Provenance        `json:"source,omitempty"`
}

// AnalysisSnapshot is a stored summary row.
type AnalysisSnapshot struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Source    Provenance      `json:"source"`
	Summary   AnalysisSummary `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}

// LinkedItem is a bank connection saved for an account. The access token is
// never serialized.
type LinkedItem struct {
	UserID      string    `json:"user_id"`
	ItemID      string    `json:"item_id"`
	AccessToken string    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}
