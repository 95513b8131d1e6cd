package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const DefaultStrikeBaseURL = "https://api.strike.me/v1"

// StrikeBalance is one currency balance of the account.
type StrikeBalance struct {
	Currency  string          `json:"currency"`
	Current   decimal.Decimal `json:"current"`
	Available decimal.Decimal `json:"available"`
	Outgoing  decimal.Decimal `json:"outgoing"`
	Total     decimal.Decimal `json:"total"`
}

// StrikeRate is a ticker entry, amount of target currency per one unit of source.
type StrikeRate struct {
	SourceCurrency string          `json:"sourceCurrency"`
	TargetCurrency string          `json:"targetCurrency"`
	Amount         decimal.Decimal `json:"amount"`
}

// StrikeClient reads account balances and exchange rates. It never places orders.
type StrikeClient struct {
	rest    *RESTClient
	baseURL string
	apiKey  string
}

// NewStrikeClient creates a Strike API client authenticated with a bearer key.
func NewStrikeClient(rest *RESTClient, baseURL, apiKey string) *StrikeClient {
	if baseURL == "" {
		baseURL = DefaultStrikeBaseURL
	}
	return &StrikeClient{
		rest:    rest,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *StrikeClient) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

// Balances returns the account balances.
func (c *StrikeClient) Balances(ctx context.Context) ([]StrikeBalance, error) {
	if c.apiKey == "" {
		return nil, errors.New("strike API key is not configured")
	}

	var balances []StrikeBalance
	if err := c.rest.GetJSON(ctx, c.baseURL+"/balances", c.header(), &balances); err != nil {
		return nil, errors.Wrap(err, "get strike balances")
	}
	return balances, nil
}

// Rates returns the full ticker.
func (c *StrikeClient) Rates(ctx context.Context) ([]StrikeRate, error) {
	var rates []StrikeRate
	if err := c.rest.GetJSON(ctx, c.baseURL+"/rates/ticker", c.header(), &rates); err != nil {
		return nil, errors.Wrap(err, "get strike rates")
	}
	return rates, nil
}

// Rate returns the price of one unit of source in target.
func (c *StrikeClient) Rate(ctx context.Context, source, target string) (decimal.Decimal, error) {
	rates, err := c.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	for _, r := range rates {
		if strings.EqualFold(r.SourceCurrency, source) && strings.EqualFold(r.TargetCurrency, target) {
			if !r.Amount.IsPositive() {
				return decimal.Zero, fmt.Errorf("strike rate %s/%s is not positive: %s", source, target, r.Amount)
			}
			return r.Amount, nil
		}
	}

	return decimal.Zero, fmt.Errorf("strike ticker has no %s/%s rate", source, target)
}
