package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mpalmeida/spendsight/internal/domain/categorize"
	"github.com/mpalmeida/spendsight/internal/domain/filter"
	"github.com/mpalmeida/spendsight/internal/domain/ingest/parser"
	"github.com/mpalmeida/spendsight/internal/pipeline"
	"github.com/mpalmeida/spendsight/pkg/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spendsight",
		Short:         "Turn a bank statement into categorized spending insights",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newSniffCmd())
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		periodMonths float64
		keepFlagged  bool
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <statement-file>",
		Short: "Run one upload-to-report session over a statement export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(verbose)

			session, err := newSession(cmd.Context(), cfg, periodMonths, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			flagged, err := session.Ingest(f, args[0])
			if err != nil {
				return err
			}

			if len(flagged) > 0 {
				decisions, err := resolveFlagged(cmd, flagged, keepFlagged)
				if err != nil {
					return err
				}
				if err := session.ApplyReviewDecisions(decisions); err != nil {
					return err
				}
			}

			report, err := session.Finish(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, session.ReviewQueue())
		},
	}

	cmd.Flags().Float64Var(&periodMonths, "period-months", 0, "months the statement covers (default from INSIGHTS_PERIOD_MONTHS)")
	cmd.Flags().BoolVar(&keepFlagged, "keep-flagged", false, "keep flagged transactions without prompting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newSession(ctx context.Context, cfg *config.Config, periodMonths float64, logger *slog.Logger) (*pipeline.Session, error) {
	categories, err := loadCategories(cfg.Categorize.RulesPath)
	if err != nil {
		return nil, err
	}

	classifier, err := buildClassifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if periodMonths == 0 {
		periodMonths = float64(cfg.Insights.PeriodMonths)
	}

	return pipeline.NewSession(pipeline.Options{
		Filter: filter.Config{
			WithdrawalReviewThresholdCents: cfg.Filter.WithdrawalReviewThresholdCents,
		},
		Parser: parser.Options{
			EuropeanAmounts: cfg.Ingest.EuropeanFormat,
		},
		Categories: categories,
		Classifier: classifier,
		Categorizer: categorize.ServiceConfig{
			ConfidenceThreshold: cfg.Categorize.ConfidenceThreshold,
			BatchSize:           cfg.Classifier.BatchSize,
			MaxInFlight:         cfg.Classifier.MaxInFlight,
			FuzzyEnabled:        cfg.Categorize.FuzzyEnabled,
		},
		PeriodMonths: periodMonths,
		TopN:         cfg.Insights.TopN,
		Logger:       logger,
	})
}

func loadCategories(path string) (*categorize.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return categorize.DefaultConfig(), nil
	}
	return categorize.LoadConfig(path)
}

func buildClassifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (categorize.Classifier, error) {
	switch cfg.ClassifierBackend() {
	case config.BackendHTTP:
		return categorize.NewHTTPClassifier(categorize.HTTPClassifierConfig{
			URL:           cfg.Classifier.URL,
			APIKey:        cfg.Classifier.APIKey,
			Timeout:       cfg.Classifier.Timeout,
			MaxRetries:    cfg.Classifier.MaxRetries,
			RatePerSecond: cfg.Classifier.RatePerSecond,
			RateBurst:     cfg.Classifier.RateBurst,
		}, logger), nil
	case config.BackendGemini:
		return categorize.NewGeminiClassifier(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		logger.Info("no classifier configured, categorizing locally only")
		return nil, nil
	}
}

// resolveFlagged asks the user about each flagged transaction, or keeps all
// of them when --keep-flagged is set.
func resolveFlagged(cmd *cobra.Command, flagged []filter.Flagged, keepAll bool) (map[uuid.UUID]bool, error) {
	decisions := make(map[uuid.UUID]bool, len(flagged))
	if keepAll {
		for _, f := range flagged {
			decisions[f.Transaction.ID] = true
		}
		return decisions, nil
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	fmt.Fprintf(out, "%d transaction(s) need review:\n", len(flagged))
	for _, f := range flagged {
		fmt.Fprintf(out, "  %s  %s  %.2f (%s)\n",
			f.Transaction.Date.Format("2006-01-02"),
			f.Transaction.RawDescription,
			float64(f.Transaction.AmountCents)/100,
			f.Reason)
		fmt.Fprint(out, "  keep it? [y/N] ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading review decision: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		decisions[f.Transaction.ID] = answer == "y" || answer == "yes"
	}
	return decisions, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
