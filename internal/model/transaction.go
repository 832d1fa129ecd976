package model

import "time"

// Transaction is a single money movement in the common format shared by the
// bank-link and PDF sources. Amount is signed: income is positive, expenses
// are negative.
type Transaction struct {
	ID       string  `json:"id,omitempty"`
	Date     string  `json:"date,omitempty"`
	Merchant string  `json:"description"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category,omitempty"`
}

// StatementRecord is a persisted statement as returned by the server.
// The client only ever holds a cached copy.
type StatementRecord struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	Transactions []Transaction `json:"transactions"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
}

// StatementFile is the per-file breakdown returned by the upload endpoint.
// It is also the payload accepted by save_statements.
type StatementFile struct {
	Filename     string        `json:"filename"`
	Transactions []Transaction `json:"transactions"`
}

// CloneTransactions returns a copy of txns that shares no backing array.
func CloneTransactions(txns []Transaction) []Transaction {
	if txns == nil {
		return nil
	}
	out := make([]Transaction, len(txns))
	copy(out, txns)
	return out
}

// CloneStatements deep-copies a statement list, including each statement's transactions.
func CloneStatements(stmts []StatementRecord) []StatementRecord {
	if stmts == nil {
		return nil
	}
	out := make([]StatementRecord, len(stmts))
	for i, s := range stmts {
		s.Transactions = CloneTransactions(s.Transactions)
		out[i] = s
	}
	return out
}

// CloneFiles deep-copies a file breakdown.
func CloneFiles(files []StatementFile) []StatementFile {
	if files == nil {
		return nil
	}
	out := make([]StatementFile, len(files))
	for i, f := range files {
		f.Transactions = CloneTransactions(f.Transactions)
		out[i] = f
	}
	return out
}
