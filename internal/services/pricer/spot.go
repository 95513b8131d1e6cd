package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/clients"
)

const (
	SpotSourceStrike  = "strike"
	SpotSourceBinance = "binance"

	defaultBinanceSymbol = "BTCUSDT"
)

type strikeRates interface {
	Rate(ctx context.Context, source, target string) (decimal.Decimal, error)
}

// StrikeSpot reads BTC/USD from the Strike ticker.
type StrikeSpot struct {
	rates strikeRates
}

func NewStrikeSpot(rates strikeRates) *StrikeSpot {
	return &StrikeSpot{rates: rates}
}

func (s *StrikeSpot) SpotPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := s.rates.Rate(ctx, "BTC", "USD")
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "strike spot price")
	}
	return price, nil
}

// BinanceSpot reads the last trade price from the Binance public ticker.
type BinanceSpot struct {
	client *binance.Client
	symbol string
}

// NewBinanceSpot quotes symbol, BTCUSDT when empty.
func NewBinanceSpot(client *binance.Client, symbol string) *BinanceSpot {
	if symbol == "" {
		symbol = defaultBinanceSymbol
	}
	return &BinanceSpot{client: client, symbol: symbol}
}

func (s *BinanceSpot) SpotPrice(ctx context.Context) (decimal.Decimal, error) {
	prices, err := s.client.NewListPricesService().Symbol(s.symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance price for %s", s.symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("binance API returned empty prices for %s", s.symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse binance price %q", prices[0].Price)
	}
	return price, nil
}

// NewSpotPricer picks the spot source by name.
func NewSpotPricer(source string, strike *clients.StrikeClient, bn *binance.Client) (SpotPricer, error) {
	switch source {
	case "", SpotSourceStrike:
		if strike == nil {
			return nil, errors.New("strike client is required for strike spot source")
		}
		return NewStrikeSpot(strike), nil
	case SpotSourceBinance:
		if bn == nil {
			return nil, errors.New("binance client is required for binance spot source")
		}
		return NewBinanceSpot(bn, ""), nil
	default:
		return nil, fmt.Errorf("unknown spot source %q", source)
	}
}
