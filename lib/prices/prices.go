// Package prices keeps a rolling window of observed prices.
package prices

import (
	"math"

	"github.com/ftchann/uniswap-vault/lib/invariant"

	"github.com/shopspring/decimal"
)

type Prices struct {
	prices []decimal.Decimal
	index  int
	count  int
}

func NewPrices(length int) *Prices {
	invariant.Invariant(length > 1, "price window needs at least two slots")
	return &Prices{prices: make([]decimal.Decimal, length)}
}

// Add overwrites the oldest price once the window is full.
func (p *Prices) Add(price decimal.Decimal) {
	p.prices[p.index] = price
	p.index = (p.index + 1) % len(p.prices)
	if p.count < len(p.prices) {
		p.count++
	}
}

func (p *Prices) Len() int {
	return p.count
}

func (p *Prices) Average() decimal.Decimal {
	if p.count == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, price := range p.prices[:p.count] {
		sum = sum.Add(price)
	}
	return sum.DivRound(decimal.NewFromInt(int64(p.count)), 18)
}

// Volatility is the sample standard deviation of the window relative to its
// average. Zero until two prices are recorded.
func (p *Prices) Volatility() decimal.Decimal {
	if p.count < 2 {
		return decimal.Zero
	}
	avg := p.Average()
	if avg.IsZero() {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, price := range p.prices[:p.count] {
		diff := price.Sub(avg)
		sum = sum.Add(diff.Mul(diff))
	}
	variance := sum.DivRound(decimal.NewFromInt(int64(p.count-1)), 36)
	invariant.Invariant(!variance.IsNegative(), "variance is not negative")
	std := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
	return std.DivRound(avg, 18)
}
