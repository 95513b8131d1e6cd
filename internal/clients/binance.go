package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinancePublicClient creates a Binance client without API keys. It can
// only reach public market data endpoints. An empty baseURL keeps the default.
func NewBinancePublicClient(baseURL string) *binance.Client {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return client
}
