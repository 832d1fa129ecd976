package analysis

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

func summaryOf(income, expenses float64, cats map[string]float64) *model.AnalysisSummary {
	return &model.AnalysisSummary{
		TotalIncome:   income,
		TotalExpenses: expenses,
		CashFlow:      income - expenses,
		ByCategory:    cats,
	}
}

func TestAdoptReplacesWithoutResidue(t *testing.T) {
	s := NewStore(zerolog.Nop())

	a := model.CurrentAnalysis{
		Summary:      summaryOf(5000, 3200, map[string]float64{"Income": 5000, "Housing": -2000}),
		Transactions: []model.Transaction{{Merchant: "Employer", Amount: 5000}},
		Provenance:   model.ProvenancePDFUpload,
		Stage:        model.StageTentative,
		PendingFiles: []model.StatementFile{{Filename: "jan.pdf"}},
	}
	b := model.CurrentAnalysis{
		Summary:     summaryOf(100, 50, map[string]float64{"Food": -50}),
		Provenance:  model.ProvenanceBankLink,
		Stage:       model.StageTentative,
		AccessToken: "access-sandbox-1",
		ItemID:      "item-1",
	}

	s.Adopt(a)
	s.Adopt(b)

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, model.ProvenanceBankLink, got.Provenance)
	assert.Equal(t, map[string]float64{"Food": -50}, got.Summary.ByCategory)
	assert.Empty(t, got.Transactions)
	assert.Empty(t, got.PendingFiles)
	assert.Equal(t, "item-1", got.ItemID)
}

func TestAdoptCopiesInAndOut(t *testing.T) {
	s := NewStore(zerolog.Nop())

	cats := map[string]float64{"Food": -10}
	txns := []model.Transaction{{Merchant: "Cafe", Amount: -10}}
	s.Adopt(model.CurrentAnalysis{
		Summary:      summaryOf(0, 10, cats),
		Transactions: txns,
		Provenance:   model.ProvenancePDFUpload,
	})

	// Mutating the caller's values must not reach the store.
	cats["Food"] = -999
	txns[0].Amount = -999

	got, _ := s.Current()
	assert.Equal(t, -10.0, got.Summary.ByCategory["Food"])
	assert.Equal(t, -10.0, got.Transactions[0].Amount)

	// Nor must mutating a returned copy.
	got.Summary.ByCategory["Food"] = -1
	got.Transactions[0].Merchant = "changed"
	again, _ := s.Current()
	assert.Equal(t, -10.0, again.Summary.ByCategory["Food"])
	assert.Equal(t, "Cafe", again.Transactions[0].Merchant)
}

func TestAdoptToleratesInconsistentSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewStore(zerolog.New(buf))

	s.Adopt(model.CurrentAnalysis{
		Summary:    &model.AnalysisSummary{TotalIncome: 100, TotalExpenses: 40, CashFlow: 70},
		Provenance: model.ProvenancePDFUpload,
	})

	got, ok := s.Current()
	require.True(t, ok)
	assert.True(t, got.SummaryInconsistent)
	assert.Equal(t, 70.0, got.Summary.CashFlow)
	assert.Contains(t, buf.String(), "inconsistent")

	s.Adopt(model.CurrentAnalysis{
		Summary:             summaryOf(100, 40, nil),
		Provenance:          model.ProvenancePDFUpload,
		SummaryInconsistent: true,
	})
	got, _ = s.Current()
	assert.False(t, got.SummaryInconsistent)
}

func TestClear(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Adopt(model.CurrentAnalysis{Provenance: model.ProvenancePersisted})
	s.SetStatements([]model.StatementRecord{{ID: "a"}})

	s.Clear()

	_, ok := s.Current()
	assert.False(t, ok)
	assert.Empty(t, s.Statements())
}

func TestStatementsAreCopied(t *testing.T) {
	s := NewStore(zerolog.Nop())
	stmts := []model.StatementRecord{{ID: "a", Transactions: []model.Transaction{{Amount: 1}}}}
	s.SetStatements(stmts)

	stmts[0].Transactions[0].Amount = 2
	got := s.Statements()
	assert.Equal(t, 1.0, got[0].Transactions[0].Amount)
}

func TestReplaceIf(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Adopt(model.CurrentAnalysis{Provenance: model.ProvenancePDFUpload, PendingFiles: []model.StatementFile{{Filename: "a.pdf"}}})

	cur, rev, ok := s.Snapshot()
	require.True(t, ok)

	// A newer adoption wins over a stale compare-and-swap.
	s.Adopt(model.CurrentAnalysis{Provenance: model.ProvenanceBankLink})
	cur.PendingFiles = nil
	assert.False(t, s.ReplaceIf(rev, cur))
	got, _ := s.Current()
	assert.Equal(t, model.ProvenanceBankLink, got.Provenance)

	assert.True(t, s.ReplaceIf(s.Revision(), model.CurrentAnalysis{Provenance: model.ProvenancePersisted}))
	got, _ = s.Current()
	assert.Equal(t, model.ProvenancePersisted, got.Provenance)
}

func TestSubscribe(t *testing.T) {
	s := NewStore(zerolog.Nop())

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Adopt(model.CurrentAnalysis{Provenance: model.ProvenancePDFUpload})
	s.Clear()

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeAdopted, changes[0].Type)
	require.NotNil(t, changes[0].Analysis)
	assert.Equal(t, ChangeCleared, changes[1].Type)
	assert.Nil(t, changes[1].Analysis)
	assert.Greater(t, changes[1].Revision, changes[0].Revision)

	unsubscribe()
	s.Adopt(model.CurrentAnalysis{})
	assert.Len(t, changes, 2)
}

func TestConcurrentAdopt(t *testing.T) {
	s := NewStore(zerolog.Nop())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Adopt(model.CurrentAnalysis{
				Summary:    summaryOf(float64(i), 0, map[string]float64{"Income": float64(i)}),
				Provenance: model.ProvenancePDFUpload,
			})
			_, _ = s.Current()
		}()
	}
	wg.Wait()

	got, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, got.Summary.TotalIncome, got.Summary.ByCategory["Income"])
	assert.Equal(t, uint64(20), s.Revision())
}
