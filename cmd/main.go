// Command sentidca plans sentiment-weighted bitcoin DCA purchases.
//
// Usage:
//
//	sentidca serve --config config.yaml
//	sentidca backtest --budget 1100 --start 2020-01-01
//	sentidca decide --sentiment 62.5 --price 64000
//	sentidca setup
//
// Optional environment variables (also read from .env):
//
//	STRIKE_API_KEY       Strike API key for the strike spot source
//	SENTIDCA_STATE_DIR   overrides the budget state directory
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vadiminshakov/sentidca/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "sentidca",
		Short:         "Sentiment-driven bitcoin DCA planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to yaml config")

	root.AddCommand(
		newServeCmd(opts),
		newBacktestCmd(opts),
		newDecideCmd(opts),
		newSetupCmd(),
	)

	return root
}

func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	return zcfg.Build()
}
