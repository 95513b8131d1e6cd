package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/sentidca/internal/backtest"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/pkg/indicators"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var boxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

func newBacktestCmd(opts *rootOptions) *cobra.Command {
	var (
		budget  string
		start   string
		asJSON  bool
		daysOut bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the strategy over the full holders-in-profit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			btCfg := backtest.DefaultConfig(cfg.MonthlyBudget)
			btCfg.Strategy = cfg.Strategy
			btCfg.SmoothingWindow = cfg.SmoothingWindow
			btCfg.StartDate = cfg.StartDate

			if budget != "" {
				if btCfg.MonthlyBudget, err = decimal.NewFromString(budget); err != nil || !btCfg.MonthlyBudget.IsPositive() {
					return fmt.Errorf("invalid --budget %q", budget)
				}
			}
			if start != "" {
				if btCfg.StartDate, err = domain.ParseDate(start); err != nil {
					return err
				}
			}

			src, err := sources(cfg, logger)
			if err != nil {
				return err
			}

			var (
				series []domain.SentimentPoint
				prices domain.PriceSeries
			)
			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				series, err = src.Holders.Fetch(gctx)
				return err
			})
			g.Go(func() (err error) {
				prices, err = src.History.History(gctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			if len(series) == 0 {
				return errors.Wrap(domain.ErrEmptySeries, "backtest")
			}

			if btCfg.Strategy.TrendAdjustment {
				btCfg.Trend = indicators.MovingAverageByDate(prices, cfg.TrendWindow)
			}

			result := backtest.Run(series, prices, btCfg)
			logger.Debug("backtest finished", zap.Int("days", len(result.Days)))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if daysOut {
					return enc.Encode(result)
				}
				return enc.Encode(result.Summary)
			}

			fmt.Fprintln(out, boxStyle.Render(renderSummary(btCfg, result.Summary)))
			return nil
		},
	}

	cmd.Flags().StringVar(&budget, "budget", "", "monthly budget in USD (defaults to config)")
	cmd.Flags().StringVar(&start, "start", "", "first reported day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&daysOut, "days", false, "with --json, include the daily ledger")

	return cmd
}

func renderSummary(cfg backtest.Config, s backtest.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Monthly budget     %s USD\n", domain.FormatMoney(cfg.MonthlyBudget))
	if !cfg.StartDate.IsZero() {
		fmt.Fprintf(&b, "From               %s\n", cfg.StartDate)
	}
	fmt.Fprintf(&b, "Days               %d\n", s.Days)
	fmt.Fprintf(&b, "Total spent        %s USD\n", domain.FormatMoney(s.TotalSpent))
	fmt.Fprintf(&b, "Total BTC          %s\n", s.TotalBTC.StringFixed(8))
	fmt.Fprintf(&b, "Fees paid          %s USD\n", domain.FormatMoney(s.TotalFees))
	fmt.Fprintf(&b, "Avg cost basis     %s USD\n", domain.FormatMoney(s.AverageCostBasis))
	fmt.Fprintf(&b, "Cash left          %s USD\n", domain.FormatMoney(s.CashBalance))
	fmt.Fprintf(&b, "Daily spend        %.2f ± %.2f USD\n", s.MeanDailySpend, s.StdDevDailySpend)

	labels := make([]string, 0, len(s.BandDays))
	for label := range s.BandDays {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(&b, "  %-16s %d days\n", label, s.BandDays[label])
	}

	return strings.TrimRight(b.String(), "\n")
}
