package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Purchase is a manually recorded BTC buy.
type Purchase struct {
	ID        string          `json:"id"`
	AmountBTC decimal.Decimal `json:"amount_btc"`
	Price     decimal.Decimal `json:"price"`
	Date      Date            `json:"date"`
}

// NewPurchase creates a validated Purchase.
func NewPurchase(id string, amountBTC, price decimal.Decimal, date Date) (Purchase, error) {
	if id == "" {
		return Purchase{}, fmt.Errorf("purchase id is required")
	}
	if !amountBTC.IsPositive() {
		return Purchase{}, fmt.Errorf("amount must be positive, got %s", amountBTC.String())
	}
	if !price.IsPositive() {
		return Purchase{}, fmt.Errorf("price must be positive, got %s", price.String())
	}
	if date.IsZero() {
		return Purchase{}, fmt.Errorf("purchase date is required")
	}

	return Purchase{
		ID:        id,
		AmountBTC: amountBTC,
		Price:     price,
		Date:      date,
	}, nil
}

// Cost is the fiat paid for the purchase.
func (p Purchase) Cost() decimal.Decimal {
	return p.AmountBTC.Mul(p.Price)
}

// SpentIn sums the cost of purchases made during month.
func SpentIn(purchases []Purchase, month Month) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		if month.Contains(p.Date) {
			total = total.Add(p.Cost())
		}
	}
	return total
}
