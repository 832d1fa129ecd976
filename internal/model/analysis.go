package model

import (
	"maps"
	"math"
)

// Provenance records which flow produced an analysis.
type Provenance string

const (
	ProvenanceBankLink  Provenance = "bank-link"
	ProvenancePDFUpload Provenance = "pdf-upload"
	ProvenancePersisted Provenance = "persisted-account"
)

// Valid reports whether p is one of the known provenance tags.
func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceBankLink, ProvenancePDFUpload, ProvenancePersisted:
		return true
	}
	return false
}

// Decomposable reports whether an analysis of this provenance is made of
// individually removable statements.
func (p Provenance) Decomposable() bool {
	return p == ProvenancePDFUpload || p == ProvenancePersisted
}

// Stage separates an analysis produced locally by an acquisition flow from
// one adopted from a server reconciliation response.
type Stage string

const (
	StageTentative     Stage = "tentative"
	StageAuthoritative Stage = "authoritative"
)

// MerchantTotal is one entry of the top merchants ranking.
type MerchantTotal struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// AnalysisSummary is the derived aggregate over a set of transactions.
// It is always produced by the analysis service, never edited by hand.
type AnalysisSummary struct {
	TotalIncome      float64            `json:"total_income"`
	TotalExpenses    float64            `json:"total_expenses"`
	CashFlow         float64            `json:"cash_flow"`
	ByCategory       map[string]float64 `json:"by_category"`
	TopMerchants     []MerchantTotal    `json:"top_merchants"`
	CashFlowByMonth  map[string]float64 `json:"cash_flow_by_month"`
	TransactionCount int                `json:"transaction_count"`
}

// Consistent reports whether cash flow equals income minus expenses to the cent.
func (s AnalysisSummary) Consistent() bool {
	return math.Abs(s.CashFlow-(s.TotalIncome-s.TotalExpenses)) < 0.005
}

// Clone returns a deep copy of the summary.
func (s AnalysisSummary) Clone() AnalysisSummary {
	out := s
	if s.ByCategory != nil {
		out.ByCategory = maps.Clone(s.ByCategory)
	}
	if s.CashFlowByMonth != nil {
		out.CashFlowByMonth = maps.Clone(s.CashFlowByMonth)
	}
	if s.TopMerchants != nil {
		out.TopMerchants = append([]MerchantTotal(nil), s.TopMerchants...)
	}
	return out
}

// CurrentAnalysis is the single analysis the front end is showing.
// AccessToken and ItemID are only set for bank-link analyses; PendingFiles
// only for PDF uploads that have not been saved to an account yet.
type CurrentAnalysis struct {
	Summary      *AnalysisSummary `json:"analysis"`
	Transactions []Transaction    `json:"transactions"`
	Provenance   Provenance       `json:"source"`
	Stage        Stage            `json:"stage"`
	AccessToken  string           `json:"-"`
	ItemID       string           `json:"item_id,omitempty"`
	PendingFiles []StatementFile  `json:"pending_files,omitempty"`

	// SummaryInconsistent is set by the analysis store when the summary
	// fails Consistent. It is informational only.
	SummaryInconsistent bool `json:"summary_inconsistent,omitempty"`
}

// Clone returns a deep copy of the analysis.
func (a CurrentAnalysis) Clone() CurrentAnalysis {
	out := a
	if a.Summary != nil {
		s := a.Summary.Clone()
		out.Summary = &s
	}
	out.Transactions = CloneTransactions(a.Transactions)
	out.PendingFiles = CloneFiles(a.PendingFiles)
	return out
}

// HasPendingFiles reports whether the analysis carries uploaded statements
// that have not been saved to an account.
func (a CurrentAnalysis) HasPendingFiles() bool {
	return len(a.PendingFiles) > 0
}
