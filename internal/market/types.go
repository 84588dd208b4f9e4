package market

import (
	"errors"
	"time"
)

// Provider ids. The concrete clients behind them are configured at
// bootstrap; everything else refers to providers only by these roles.
const (
	ProviderPrimary  = "primary"
	ProviderBackup   = "backup"
	ProviderFallback = "fallback"
)

// ErrUnsupported is returned by a provider for a data kind it does not
// serve; the router falls through to the next provider.
var ErrUnsupported = errors.New("data kind not supported by provider")

// Profile represents basic instrument information from a provider
type Profile struct {
	Ticker       string     `json:"ticker"`
	Name         string     `json:"name"`
	IPODate      *time.Time `json:"ipo_date,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	LastDividend *float64   `json:"last_dividend,omitempty"`
}

// PriceRow represents a single historical price bar
type PriceRow struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// DividendRow represents a single dividend payment
type DividendRow struct {
	PaymentDate time.Time  `json:"date"`
	ExDate      *time.Time `json:"ex_date,omitempty"`
	Amount      float64    `json:"dividend"`
}

// SplitRow represents a corporate split action
type SplitRow struct {
	Date        time.Time `json:"date"`
	Ratio       float64   `json:"ratio"`
	Description string    `json:"description"`
}

// Merged is the per-ticker result of per-field promotion across
// providers. Sources records which provider supplied each field.
type Merged struct {
	Profile   *Profile          `json:"profile,omitempty"`
	Price     *float64          `json:"price,omitempty"`
	Dividends []DividendRow     `json:"dividends,omitempty"`
	Splits    []SplitRow        `json:"splits,omitempty"`
	Sources   map[string]string `json:"sources"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Complete reports whether every required field was obtained
func (m *Merged) Complete() bool {
	return m.Profile != nil && m.Price != nil
}
