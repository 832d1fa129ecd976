package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ndewijer/Finance-Insights/internal/acquire"
	"github.com/ndewijer/Finance-Insights/internal/analysis"
	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/insights"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/statement"
)

type analyzeOptions struct {
	apiURL  string
	local   bool
	text    bool
	jsonOut bool
}

func newAnalyzeCommand() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Analyze bank statements as a guest",
		Long: "Analyze up to 12 PDF statements and print the spending summary.\n" +
			"Files are uploaded to the analysis backend unless --local is given.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if opts.apiURL == "" {
				opts.apiURL = cfg.App.APIURL
			}
			if opts.text {
				opts.local = true
			}

			log := newLogger(cfg.Logging, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
			return runAnalyze(cmd, args, opts, log)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "analysis backend base URL (default API_URL)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "parse the statements locally instead of uploading them")
	cmd.Flags().BoolVar(&opts.text, "text", false, "treat files as already-extracted plain text (implies --local)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the analysis as JSON")

	return cmd
}

func runAnalyze(cmd *cobra.Command, paths []string, opts analyzeOptions, log zerolog.Logger) error {
	files, err := readFiles(paths)
	if err != nil {
		return err
	}

	var (
		names   []string
		current model.CurrentAnalysis
	)
	if opts.text {
		names, current, err = analyzeText(files, log)
	} else {
		sel := acquire.NewSelection()
		for _, w := range sel.Add(files...) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
		}
		if !sel.CanSubmit() {
			return apperrors.ErrNoFilesSelected
		}
		names = sel.Names()
		if opts.local {
			current, err = analyzeLocal(sel.Files(), log)
		} else {
			current, err = analyzeRemote(cmd, sel, opts.apiURL, log)
		}
	}
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknown {
			return err
		}
		return errors.New(apperrors.Message(err))
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(current)
	}
	return printSummary(cmd.OutOrStdout(), names, current)
}

func readFiles(paths []string) ([]apiclient.UploadFile, error) {
	files := make([]apiclient.UploadFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		f := apiclient.UploadFile{Name: filepath.Base(p), Data: data}
		if strings.EqualFold(filepath.Ext(p), ".pdf") {
			f.ContentType = "application/pdf"
		}
		files = append(files, f)
	}
	return files, nil
}

// analyzeRemote runs the guest upload flow against the backend.
func analyzeRemote(cmd *cobra.Command, sel *acquire.Selection, apiURL string, log zerolog.Logger) (model.CurrentAnalysis, error) {
	store := analysis.NewStore(log)
	uploader := acquire.NewUploader(apiclient.NewHTTPClient(apiURL, nil, log), store, log)
	if _, err := uploader.Submit(cmd.Context(), sel); err != nil {
		return model.CurrentAnalysis{}, err
	}
	cur, _ := store.Current()
	return cur, nil
}

func analyzeLocal(files []apiclient.UploadFile, log zerolog.Logger) (model.CurrentAnalysis, error) {
	return parseAll(statement.NewParser(statement.PDFExtractor{}, log), files)
}

func analyzeText(files []apiclient.UploadFile, log zerolog.Logger) ([]string, model.CurrentAnalysis, error) {
	if len(files) > acquire.MaxStatements {
		return nil, model.CurrentAnalysis{}, apperrors.ErrTooManyFiles
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	cur, err := parseAll(statement.NewParser(statement.TextExtractor{}, log), files)
	return names, cur, err
}

func parseAll(p *statement.Parser, files []apiclient.UploadFile) (model.CurrentAnalysis, error) {
	var txns []model.Transaction
	for _, f := range files {
		parsed, err := p.Parse(f.Name, f.Data)
		if err != nil {
			return model.CurrentAnalysis{}, fmt.Errorf("failed to parse '%s': %w", f.Name, err)
		}
		txns = append(txns, parsed...)
	}
	summary := insights.Analyze(txns)
	return model.CurrentAnalysis{
		Summary:      &summary,
		Transactions: txns,
		Provenance:   model.ProvenancePDFUpload,
		Stage:        model.StageTentative,
	}, nil
}

func printSummary(w io.Writer, names []string, cur model.CurrentAnalysis) error {
	var s model.AnalysisSummary
	if cur.Summary != nil {
		s = *cur.Summary
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Files:\t%s\n", strings.Join(names, ", "))
	fmt.Fprintf(tw, "Transactions:\t%d\n", s.TransactionCount)
	fmt.Fprintf(tw, "Total income:\t%s\n", money(s.TotalIncome))
	fmt.Fprintf(tw, "Total expenses:\t%s\n", money(s.TotalExpenses))
	fmt.Fprintf(tw, "Cash flow:\t%s\n", money(s.CashFlow))

	if len(s.ByCategory) > 0 {
		fmt.Fprintln(tw, "\nBy category:")
		for _, k := range sortedKeys(s.ByCategory) {
			fmt.Fprintf(tw, "  %s\t%s\n", k, money(s.ByCategory[k]))
		}
	}
	if len(s.TopMerchants) > 0 {
		fmt.Fprintln(tw, "\nTop merchants:")
		for _, m := range s.TopMerchants {
			fmt.Fprintf(tw, "  %s\t%s\n", m.Name, money(m.Amount))
		}
	}
	if len(s.CashFlowByMonth) > 0 {
		fmt.Fprintln(tw, "\nCash flow by month:")
		for _, k := range sortedKeys(s.CashFlowByMonth) {
			fmt.Fprintf(tw, "  %s\t%s\n", k, money(s.CashFlowByMonth[k]))
		}
	}
	return tw.Flush()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
