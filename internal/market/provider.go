package market

import (
	"context"
	"time"
)

// Provider is the contract every market-data client implements. Clients
// that do not serve a data kind return ErrUnsupported for it.
type Provider interface {
	// ID returns the provider role id (primary, backup, fallback)
	ID() string

	// Profile fetches basic instrument information
	Profile(ctx context.Context, ticker string) (*Profile, error)

	// Quote fetches the current price
	Quote(ctx context.Context, ticker string) (float64, error)

	// MonthlyPrices fetches monthly closes going back the given number of years
	MonthlyPrices(ctx context.Context, ticker string, years int) ([]PriceRow, error)

	// WeeklyPrices fetches weekly closes going back the given number of years
	WeeklyPrices(ctx context.Context, ticker string, years int) ([]PriceRow, error)

	// DailyPrices fetches daily closes going back the given number of days
	DailyPrices(ctx context.Context, ticker string, days int) ([]PriceRow, error)

	// Dividends fetches dividend history going back the given number of
	// years. A zero since is ignored; otherwise older payments are dropped.
	Dividends(ctx context.Context, ticker string, years int, since time.Time) ([]DividendRow, error)

	// Splits fetches the split history
	Splits(ctx context.Context, ticker string) ([]SplitRow, error)
}

// Admitter guards provider calls against quota limits. A denial is
// returned as a quota_exhausted error carrying the reason.
type Admitter interface {
	Admit(ctx context.Context, provider string) error
}
