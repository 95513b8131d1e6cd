package main

import (
	"github.com/adshao/go-binance/v2"
	"github.com/vadiminshakov/sentidca/config"
	"github.com/vadiminshakov/sentidca/internal/clients"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/services/holders"
	"github.com/vadiminshakov/sentidca/internal/services/pricer"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/pkg/cache"
	"go.uber.org/zap"
)

// sources builds every market data fetcher from the config.
func sources(cfg config.Config, logger *zap.Logger) (tracker.Sources, error) {
	rest := clients.NewRESTClient(logger, clients.WithRateLimit(cfg.Sources.RequestsPerSecond, 1))

	holdersFetcher := holders.NewFetcher(rest, cfg.Sources.HoldersURL,
		cache.NewTTL[[]domain.SentimentPoint](cfg.Sources.CacheTTL), logger.Named("holders"))
	history := pricer.NewCSVHistory(rest, cfg.Sources.PricesCSVURL,
		cache.NewTTL[domain.PriceSeries](cfg.Sources.CacheTTL), logger.Named("history"))

	var strike *clients.StrikeClient
	if cfg.Sources.SpotSource == pricer.SpotSourceStrike {
		strike = clients.NewStrikeClient(rest, cfg.Sources.StrikeAPIBase, cfg.Sources.StrikeAPIKey)
	}

	var bn *binance.Client
	if cfg.Sources.SpotSource == pricer.SpotSourceBinance || cfg.Sources.SnapshotSource == config.SnapshotSourceBinance {
		bn = clients.NewBinancePublicClient(cfg.Sources.BinanceBaseURL)
	}

	spot, err := pricer.NewSpotPricer(cfg.Sources.SpotSource, strike, bn)
	if err != nil {
		return tracker.Sources{}, err
	}

	out := tracker.Sources{
		Holders: holdersFetcher,
		History: history,
		Spot:    spot,
	}

	switch cfg.Sources.SnapshotSource {
	case config.SnapshotSourceCoinGecko:
		out.Snapshot = pricer.NewCoinGeckoSnapshot(rest, cfg.Sources.CoinGeckoURL, "usd")
	case config.SnapshotSourceBinance:
		out.Snapshot = pricer.NewBinanceSnapshot(bn, "")
	}

	return out, nil
}

func trackerConfig(cfg config.Config) tracker.Config {
	return tracker.Config{
		Strategy:        cfg.Strategy,
		SmoothingWindow: cfg.SmoothingWindow,
		TrendWindow:     cfg.TrendWindow,
		MaxDaily:        cfg.MaxDaily,
		Crash:           cfg.Crash,
		Schedule:        cfg.RefreshCron,
	}
}
