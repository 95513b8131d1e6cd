package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/internal/storage/budgetstate"
	"github.com/vadiminshakov/sentidca/internal/storage/decisions"
	"github.com/vadiminshakov/sentidca/internal/storage/settings"
	"github.com/vadiminshakov/sentidca/internal/setup"
)

func newDecideCmd(opts *rootOptions) *cobra.Command {
	var (
		sentiment string
		price     string
		budget    string
		trend     string
		live      bool
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Print the decision for explicit inputs, or today's live plan with --live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if live {
				store, err := settings.Open(cfg.Storage.SQLitePath, logger.Named("settings"))
				if err != nil {
					return err
				}
				defer store.Close()

				state, err := budgetstate.NewStore(cfg.Storage.StateDir)
				if err != nil {
					return err
				}
				journal, err := decisions.NewWALStore(cfg.Storage.WALDir)
				if err != nil {
					return err
				}
				defer journal.Close()

				src, err := sources(cfg, logger)
				if err != nil {
					return err
				}
				tr, err := tracker.New(src, store, state, journal, trackerConfig(cfg), logger.Named("tracker"))
				if err != nil {
					return err
				}

				snap, err := tr.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return enc.Encode(snap)
			}

			raw, err := requiredDecimal("sentiment", sentiment)
			if err != nil {
				return err
			}
			if raw.IsNegative() || raw.GreaterThan(decimal.NewFromInt(100)) {
				return fmt.Errorf("--sentiment must be within [0, 100], got %s", raw)
			}
			spot, err := requiredDecimal("price", price)
			if err != nil {
				return err
			}
			if !spot.IsPositive() {
				return fmt.Errorf("--price must be positive, got %s", spot)
			}

			monthly := cfg.MonthlyBudget
			if budget != "" {
				if monthly, err = requiredDecimal("budget", budget); err != nil {
					return err
				}
				if !monthly.IsPositive() {
					return fmt.Errorf("--budget must be positive, got %s", monthly)
				}
			}

			var trendPrice decimal.NullDecimal
			if trend != "" {
				v, err := requiredDecimal("trend", trend)
				if err != nil {
					return err
				}
				trendPrice = decimal.NewNullDecimal(v)
			}

			return enc.Encode(cfg.Strategy.Decide(raw, monthly, spot, trendPrice))
		},
	}

	cmd.Flags().StringVar(&sentiment, "sentiment", "", "holders in profit, percent")
	cmd.Flags().StringVar(&price, "price", "", "BTC price in USD")
	cmd.Flags().StringVar(&budget, "budget", "", "monthly budget in USD (defaults to config)")
	cmd.Flags().StringVar(&trend, "trend", "", "1400-day average price in USD")
	cmd.Flags().BoolVar(&live, "live", false, "fetch market data and plan today's purchase")

	return cmd
}

func requiredDecimal(flag, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("--%s is required", flag)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return d, nil
}

func newSetupCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive wizard that writes a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.RunTUI(output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", setup.DefaultOutput, "where to write the config")

	return cmd
}
