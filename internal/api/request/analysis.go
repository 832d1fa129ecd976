package request

import "github.com/ndewijer/Finance-Insights/internal/model"

type AnalyzeTransactionsRequest struct {
	Transactions []model.Transaction `json:"transactions"`
}

type SaveStatementsRequest struct {
	Statements []model.StatementFile `json:"statements"`
}

// SaveAnalysisRequest mirrors model.SaveAnalysisRequest; a missing summary
// is stored as an empty one.
type SaveAnalysisRequest struct {
	Source      string                 `json:"source"`
	Summary     *model.AnalysisSummary `json:"summary"`
	AccessToken string                 `json:"access_token"`
	ItemID      string                 `json:"item_id"`
}

// ToModel applies defaults and converts to the service input.
func (r SaveAnalysisRequest) ToModel() model.SaveAnalysisRequest {
	out := model.SaveAnalysisRequest{
		Source:      model.Provenance(r.Source),
		AccessToken: r.AccessToken,
		ItemID:      r.ItemID,
	}
	if r.Summary != nil {
		out.Summary = *r.Summary
	}
	if out.Summary.ByCategory == nil {
		out.Summary.ByCategory = map[string]float64{}
	}
	if out.Summary.CashFlowByMonth == nil {
		out.Summary.CashFlowByMonth = map[string]float64{}
	}
	if out.Summary.TopMerchants == nil {
		out.Summary.TopMerchants = []model.MerchantTotal{}
	}
	return out
}
