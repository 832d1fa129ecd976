// Package statement turns bank statement PDFs into transactions.
package statement

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/Finance-Insights/internal/model"
)

var (
	// ISO dates come first so "2024-03-05" is not read as "24-03-05".
	datePatterns = compileAll("",
		`(\d{4}[/\-]\d{1,2}[/\-]\d{1,2})`,
		`(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`,
		`(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{2,4})`,
	)
	dateStripPatterns = compileAll("(?i)",
		`(\d{4}[/\-]\d{1,2}[/\-]\d{1,2})`,
		`(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`,
		`(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{2,4})`,
	)

	// Dashes are minus, en-dash and em-dash.
	endAmountPattern   = regexp.MustCompile(`[-–—]?\$?\s*([\d,]+(?:\.\d{2})?)\s*$`)
	parenAmountPattern = regexp.MustCompile(`\(\s*\$?\s*([\d,]+(?:\.\d{2})?)\s*\)`)
	// Decimals are required so the "-03" of 2025-03-01 is not an amount.
	signedAmountPattern = regexp.MustCompile(`[-–—]\s*\$?\s*([\d,]+\.\d{2})`)
	// "$5.46 $5,953.73": the first amount is the transaction, the second the
	// running balance. Group 1 is the part consumed; the trailing amount is
	// only required to follow.
	positiveTxnPattern = regexp.MustCompile(`(\$\s*([\d,]+\.\d{2})\s+)\$?[\d,]`)

	addressPattern = regexp.MustCompile(`(?i)\d+\s*-\s*\d+\s+\w+\s+(?:st|ave|rd|blvd)`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

var skipDescriptions = map[string]bool{
	"date": true, "posted date": true, "description": true, "amount": true, "balance": true,
	"debit": true, "credit": true, "total": true, "opening balance": true, "closing balance": true,
	"balance forward": true, "summary": true, "activity": true, "account number": true,
	"mar 1 - mar 31": true, "calgary": true, "canada": true, "page": true,
}

const (
	minAmount = 0.01
	maxAmount = 999999
)

func compileAll(prefix string, patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(prefix + p)
	}
	return out
}

// bankTemplate detects one bank's statements by keyword. Activity-gated
// templates ignore every line before the first line mentioning "activity".
type bankTemplate struct {
	id            string
	keywords      []string
	afterActivity bool
}

var bankTemplates = []bankTemplate{
	{id: "wealthsimple", keywords: []string{"wealthsimple"}, afterActivity: true},
}

// GenericBank is reported when no template matches.
const GenericBank = "generic"

// DetectBank returns the template id for doc, or GenericBank.
func DetectBank(doc Document) string {
	sample := doc.Sample(2)
	for _, tpl := range bankTemplates {
		for _, kw := range tpl.keywords {
			if strings.Contains(sample, kw) {
				return tpl.id
			}
		}
	}
	return GenericBank
}

// Parser extracts and parses statements.
type Parser struct {
	extractor Extractor
	log       zerolog.Logger
}

// NewParser creates a parser reading files with extractor.
func NewParser(extractor Extractor, log zerolog.Logger) *Parser {
	return &Parser{extractor: extractor, log: log.With().Str("component", "statement").Logger()}
}

// Parse returns the transactions found in one statement file. A file that
// yields no transactions is not an error.
func (p *Parser) Parse(filename string, data []byte) ([]model.Transaction, error) {
	doc, err := p.extractor.Extract(data)
	if err != nil {
		return nil, err
	}

	bank := DetectBank(doc)
	txns := ParseDocument(doc, bank)
	p.log.Debug().
		Str("filename", filename).
		Str("bank", bank).
		Int("pages", len(doc.Pages)).
		Int("transactions", len(txns)).
		Msg("statement parsed")
	return txns, nil
}

// ParseDocument parses doc with the template of bank. A bank template that
// finds nothing falls back to the generic rules.
func ParseDocument(doc Document, bank string) []model.Transaction {
	for _, tpl := range bankTemplates {
		if tpl.id != bank {
			continue
		}
		if txns := parseLines(doc, tpl.afterActivity); len(txns) > 0 {
			return txns
		}
		break
	}
	return parseLines(doc, false)
}

func parseLines(doc Document, afterActivity bool) []model.Transaction {
	txns := []model.Transaction{}
	pastActivity := false
	for _, page := range doc.Pages {
		for _, line := range page {
			line = strings.TrimSpace(line)
			if len(line) < 5 {
				continue
			}
			if strings.Contains(strings.ToLower(line), "activity") {
				pastActivity = true
				continue
			}
			if afterActivity && !pastActivity {
				continue
			}
			if t, ok := ParseLine(line); ok {
				txns = append(txns, t)
			}
		}
	}
	return txns
}

// ParseLine reads one transaction from a statement line. Amounts are
// matched in priority order: signed, parenthesized, an amount followed by a
// balance, and finally a trailing amount. Signed and parenthesized amounts
// are expenses.
func ParseLine(line string) (model.Transaction, bool) {
	var raw string
	negative := false
	if m := signedAmountPattern.FindStringSubmatch(line); m != nil {
		raw, negative = m[1], true
	} else if m := parenAmountPattern.FindStringSubmatch(line); m != nil {
		raw, negative = m[1], true
	} else if m := positiveTxnPattern.FindStringSubmatch(line); m != nil {
		raw = m[2]
	} else if m := endAmountPattern.FindStringSubmatch(line); m != nil {
		raw = m[1]
	} else {
		return model.Transaction{}, false
	}

	amount, err := normalizeAmount(raw)
	if err != nil {
		return model.Transaction{}, false
	}
	if negative {
		amount = amount.Abs().Neg()
	}
	if abs := amount.Abs(); abs.LessThan(decimal.NewFromFloat(minAmount)) || abs.GreaterThan(decimal.NewFromInt(maxAmount)) {
		return model.Transaction{}, false
	}

	date := ""
	for _, pat := range datePatterns {
		if m := pat.FindStringSubmatch(line); m != nil {
			date = m[1]
			break
		}
	}

	desc := describe(line)
	if looksLikeHeaderOrSummary(desc) || looksLikePaginationOrFooter(desc) || len(desc) < 3 {
		return model.Transaction{}, false
	}
	// Addresses and account numbers: no date and a short or numeric remainder.
	if date == "" && (len(desc) < 10 || isDigits(strings.ReplaceAll(desc, " ", ""))) {
		return model.Transaction{}, false
	}

	return model.Transaction{
		Date:     date,
		Merchant: desc,
		Amount:   amount.Round(2).InexactFloat64(),
	}, true
}

// describe strips amounts and dates from a line.
func describe(line string) string {
	desc := signedAmountPattern.ReplaceAllString(line, "")
	desc = stripPositiveTxn(desc)
	desc = strings.TrimSpace(endAmountPattern.ReplaceAllString(desc, ""))
	desc = strings.TrimSpace(parenAmountPattern.ReplaceAllString(desc, ""))
	for _, pat := range dateStripPatterns {
		desc = strings.TrimSpace(pat.ReplaceAllString(desc, ""))
	}
	desc = strings.TrimSpace(spacePattern.ReplaceAllString(desc, " "))
	if desc == "" {
		return "Unknown"
	}
	return desc
}

// stripPositiveTxn removes every "$x.xx " that precedes another amount and
// leaves the following amount in place.
func stripPositiveTxn(s string) string {
	var b strings.Builder
	for {
		loc := positiveTxnPattern.FindStringSubmatchIndex(s)
		if loc == nil {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:loc[2]])
		s = s[loc[3]:]
	}
}

// normalizeAmount parses a matched amount. Parentheses and a leading dash
// make it negative.
func normalizeAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.NewReplacer(",", "", "–", "-", "—", "-").Replace(raw)
	negative := strings.HasPrefix(raw, "(") || strings.HasPrefix(raw, "-")

	var digits strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			digits.WriteRune(r)
		}
	}
	n, err := decimal.NewFromString(digits.String())
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		return n.Neg(), nil
	}
	return n, nil
}

func looksLikeHeaderOrSummary(desc string) bool {
	if len(desc) < 2 {
		return true
	}
	d := strings.ToLower(strings.TrimSpace(desc))
	if skipDescriptions[d] {
		return true
	}
	return strings.HasPrefix(d, "balance") || strings.HasPrefix(d, "total")
}

func looksLikePaginationOrFooter(desc string) bool {
	if len(desc) < 5 {
		return false
	}
	d := strings.ToLower(desc)
	if strings.Contains(d, "page") && strings.Contains(d, " of ") {
		return true
	}
	if strings.Contains(d, "inc.") || strings.Contains(d, "inc,") {
		return true
	}
	return addressPattern.MatchString(d)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
