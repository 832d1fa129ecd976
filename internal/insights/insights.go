// Package insights computes the analysis summary over a transaction list.
// Amounts are summed as decimals and rounded to cents only at the end.
package insights

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

// TopMerchantLimit is the number of merchants kept in the ranking.
const TopMerchantLimit = 10

// OtherCategory is used when no keyword matches.
const OtherCategory = "Other"

type categoryRule struct {
	name     string
	keywords []string
}

// categoryRules are checked in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{"Food & Dining", []string{"restaurant", "cafe", "coffee", "uber eats", "doordash", "food", "groceries", "superstore", "loblaws", "sobeys", "metro", "tim horton", "mcdonald", "starbucks"}},
	{"Shopping", []string{"amazon", "walmart", "costco", "best buy", "ebay", "etsy", "store", "shop"}},
	{"Transportation", []string{"gas", "petro", "esso", "shell", "uber", "lyft", "parking", "transit", "go transit", "ttc", "presto"}},
	{"Bills & Utilities", []string{"hydro", "enbridge", "bell", "rogers", "telus", "internet", "electric", "water", "insurance"}},
	{"Entertainment", []string{"netflix", "spotify", "disney", "hulu", "apple tv", "prime video", "crave", "hbo", "youtube premium", "gaming", "steam", "playstation", "xbox"}},
	{"Travel", []string{"air canada", "westjet", "expedia", "booking.com", "hotel", "marriott", "airbnb", "airline", "flight", "ticket", "kayak", "trip.com"}},
	{"Income", []string{"payroll", "deposit", "transfer in", "direct deposit", "salary", "employment"}},
	{"Transfer", []string{"transfer", "etransfer", "e-transfer"}},
}

var monthLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2006/1/2",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan. 2006",
	"2/1/06",
	"2-1-06",
}

// InferCategory guesses a category from a transaction description.
func InferCategory(description string) string {
	d := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(d, kw) {
				return rule.name
			}
		}
	}
	return OtherCategory
}

// MerchantName takes the first word of a description that is longer than two
// characters and not a number. Descriptions without one are used as is.
func MerchantName(description string) string {
	for _, part := range strings.Fields(description) {
		part = strings.Trim(part, ".,-")
		if len(part) > 2 && !isDigits(part) {
			return truncate(part, 50)
		}
	}
	if description = truncate(description, 50); description != "" {
		return description
	}
	return "Unknown"
}

// MonthKey normalizes a transaction date to YYYY-MM. It returns "" for
// dates in an unknown format.
func MonthKey(date string) string {
	s := strings.TrimSpace(date)
	if s == "" {
		return ""
	}
	if len(s) > 10 && s[4] == '-' {
		s = s[:10]
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01")
		}
	}
	return ""
}

// Analyze aggregates txns. Income is the sum of positive amounts, expenses
// the magnitude of negative ones. Per-category and per-month totals are
// signed; the merchant ranking counts expenses only.
func Analyze(txns []model.Transaction) model.AnalysisSummary {
	summary := model.AnalysisSummary{
		ByCategory:       map[string]float64{},
		TopMerchants:     []model.MerchantTotal{},
		CashFlowByMonth:  map[string]float64{},
		TransactionCount: len(txns),
	}
	if len(txns) == 0 {
		return summary
	}

	income := decimal.Zero
	expenses := decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	byMerchant := map[string]decimal.Decimal{}
	byMonth := map[string]decimal.Decimal{}

	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount)
		desc := strings.TrimSpace(t.Merchant)
		if desc == "" {
			desc = "Unknown"
		}

		category := t.Category
		if category == "" {
			category = InferCategory(desc)
		}

		if amount.IsPositive() {
			income = income.Add(amount)
		} else {
			expenses = expenses.Add(amount.Abs())
			if amount.IsNegative() {
				name := MerchantName(desc)
				byMerchant[name] = byMerchant[name].Add(amount.Abs())
			}
		}
		byCategory[category] = byCategory[category].Add(amount)

		if month := MonthKey(t.Date); month != "" {
			byMonth[month] = byMonth[month].Add(amount)
		}
	}

	summary.TotalIncome = round(income)
	summary.TotalExpenses = round(expenses)
	summary.CashFlow = round(income.Sub(expenses))
	for k, v := range byCategory {
		summary.ByCategory[k] = round(v)
	}
	for k, v := range byMonth {
		summary.CashFlowByMonth[k] = round(v)
	}

	for name, total := range byMerchant {
		summary.TopMerchants = append(summary.TopMerchants, model.MerchantTotal{Name: name, Amount: round(total)})
	}
	sort.SliceStable(summary.TopMerchants, func(i, j int) bool {
		a, b := summary.TopMerchants[i], summary.TopMerchants[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Name < b.Name
	})
	if len(summary.TopMerchants) > TopMerchantLimit {
		summary.TopMerchants = summary.TopMerchants[:TopMerchantLimit]
	}

	return summary
}

func round(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
