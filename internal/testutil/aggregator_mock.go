package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

// MockAggregator is a mock implementation of aggregator.Client for testing.
// It returns predefined test data instead of calling the aggregation API.
type MockAggregator struct {
	mu sync.Mutex

	// LinkToken is returned by CreateLinkToken
	LinkToken model.LinkToken
	// Exchange is returned by ExchangePublicToken
	Exchange model.ExchangeResult
	// Transactions is returned by GetTransactions
	Transactions []model.Transaction
	// Err is returned by every method when set
	Err error

	// Calls counts invocations per method name
	Calls map[string]int
	// LastAccessToken is the access token of the latest GetTransactions call
	LastAccessToken string
	// LastStart and LastEnd are the window of the latest GetTransactions call
	LastStart, LastEnd time.Time
}

// NewMockAggregator creates a mock with a sandbox-like link token, an
// access token and the three transactions of CreateMockBankTransactions.
func NewMockAggregator() *MockAggregator {
	return &MockAggregator{
		LinkToken:    model.LinkToken{LinkToken: "link-sandbox-" + randomAlphanumeric(8), Expiration: "2030-01-01T00:00:00Z"},
		Exchange:     model.ExchangeResult{Status: "success", AccessToken: "access-sandbox-" + randomAlphanumeric(8), ItemID: "item-" + randomAlphanumeric(6)},
		Transactions: CreateMockBankTransactions(),
		Calls:        map[string]int{},
	}
}

// CreateLinkToken returns the configured LinkToken or Err.
func (m *MockAggregator) CreateLinkToken(_ context.Context, _ string) (model.LinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["CreateLinkToken"]++
	if m.Err != nil {
		return model.LinkToken{}, m.Err
	}
	return m.LinkToken, nil
}

// ExchangePublicToken returns the configured Exchange or Err.
func (m *MockAggregator) ExchangePublicToken(_ context.Context, _ string) (model.ExchangeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["ExchangePublicToken"]++
	if m.Err != nil {
		return model.ExchangeResult{}, m.Err
	}
	return m.Exchange, nil
}

// GetTransactions records the request and returns a copy of Transactions or Err.
func (m *MockAggregator) GetTransactions(_ context.Context, accessToken string, start, end time.Time) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["GetTransactions"]++
	m.LastAccessToken = accessToken
	m.LastStart, m.LastEnd = start, end
	if m.Err != nil {
		return nil, m.Err
	}
	return model.CloneTransactions(m.Transactions), nil
}

// WithError configures the mock to return the specified error.
func (m *MockAggregator) WithError(err error) *MockAggregator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// WithTransactions configures the transactions returned by GetTransactions.
func (m *MockAggregator) WithTransactions(txns []model.Transaction) *MockAggregator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transactions = txns
	return m
}

// CallCount returns how many times method was called.
func (m *MockAggregator) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

// CreateMockBankTransactions returns a small bank history in the shared sign
// convention: 5000 of income and 3200 of expenses.
func CreateMockBankTransactions() []model.Transaction {
	return []model.Transaction{
		{Date: "2024-01-02", Merchant: "PAYROLL ACME CORP", Amount: 5000, Category: "INCOME"},
		{Date: "2024-01-03", Merchant: "Rent January", Amount: -2000, Category: "RENT_AND_UTILITIES"},
		{Date: "2024-01-10", Merchant: "LOBLAWS GROCERY", Amount: -1200, Category: "FOOD_AND_DRINK"},
	}
}
