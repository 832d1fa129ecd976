package aggregator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

// APIError is the error body returned by the aggregation API.
type APIError struct {
	Status         int    `json:"-"`
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator error %d %s/%s: %s", e.Status, e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// Reason returns the most user-presentable text in the error.
func (e *APIError) Reason() string {
	if e.DisplayMessage != "" {
		return e.DisplayMessage
	}
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	return e.ErrorCode
}

type linkTokenUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenCreateRequest struct {
	ClientID     string        `json:"client_id"`
	Secret       string        `json:"secret"`
	ClientName   string        `json:"client_name"`
	Language     string        `json:"language"`
	CountryCodes []string      `json:"country_codes"`
	Products     []string      `json:"products"`
	User         linkTokenUser `json:"user"`
}

type publicTokenExchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

type publicTokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type transactionsGetOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type transactionsGetRequest struct {
	ClientID    string                 `json:"client_id"`
	Secret      string                 `json:"secret"`
	AccessToken string                 `json:"access_token"`
	StartDate   string                 `json:"start_date"`
	EndDate     string                 `json:"end_date"`
	Options     transactionsGetOptions `json:"options"`
}

type transactionsGetResponse struct {
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// PersonalFinanceCategory is the aggregator's own categorization.
type PersonalFinanceCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// Transaction is a transaction as reported by the aggregator. Positive
// amounts are money leaving the account.
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	Date                    string                   `json:"date"`
	Name                    string                   `json:"name"`
	MerchantName            string                   `json:"merchant_name"`
	Amount                  float64                  `json:"amount"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
}

// Common converts t to the shared transaction format, where income is
// positive.
func (t Transaction) Common() model.Transaction {
	desc := t.Name
	if desc == "" {
		desc = t.MerchantName
	}
	if desc == "" {
		desc = "Unknown"
	}

	category := ""
	if pfc := t.PersonalFinanceCategory; pfc != nil {
		category = pfc.Primary
		if category == "" {
			category = pfc.Detailed
		}
	}

	return model.Transaction{
		ID:       t.TransactionID,
		Date:     t.Date,
		Merchant: desc,
		Amount:   decimal.NewFromFloat(t.Amount).Neg().Round(2).InexactFloat64(),
		Category: category,
	}
}
