package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/Finance-Insights/internal/api/request"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// MaxStatements is the upload batch limit.
const MaxStatements = 12

// ValidateUploadNames checks an upload batch by filename: between one and
// MaxStatements files, every one a PDF.
func ValidateUploadNames(names []string) error {
	e := &Error{}
	switch {
	case len(names) == 0:
		e.add("statements", "At least one PDF file is required")
	case len(names) > MaxStatements:
		e.add("statements", fmt.Sprintf("Maximum %d statements allowed", MaxStatements))
	}
	for i, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			e.add(fmt.Sprintf("statements[%d]", i), fmt.Sprintf("Only PDF files accepted. '%s' is not a PDF.", name))
		}
	}
	return e.orNil()
}

// ValidateSaveStatements requires a non-empty statement list.
func ValidateSaveStatements(req request.SaveStatementsRequest) error {
	e := &Error{}
	if len(req.Statements) == 0 {
		e.add("statements", apperrors.ErrEmptyStatements.Error())
	}
	return e.orNil()
}

// ValidateAnalyzeTransactions requires the transactions field to be present.
func ValidateAnalyzeTransactions(req request.AnalyzeTransactionsRequest) error {
	e := &Error{}
	if req.Transactions == nil {
		e.add("transactions", "transactions must be a list")
	}
	return e.orNil()
}

// ValidateSaveAnalysis checks the source tag when one is given.
func ValidateSaveAnalysis(req request.SaveAnalysisRequest) error {
	e := &Error{}
	if req.Source != "" && !model.Provenance(req.Source).Valid() {
		e.add("source", fmt.Sprintf("unknown source %q", req.Source))
	}
	if req.ItemID != "" && req.AccessToken == "" {
		e.add("access_token", "access_token is required with item_id")
	}
	return e.orNil()
}
