package splits

import (
	"time"

	"github.com/mzurek/divtrack/internal/market"
)

// seedSplits lists well-known corporate actions that some providers omit
// from their split endpoints. Provider-reported events take precedence;
// a seed entry whose (date, ratio) matches the provider's is a no-op.
var seedSplits = map[string][]market.SplitRow{
	"SCHD": {
		{
			Date:        time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC),
			Ratio:       3.0,
			Description: "3:1 share split",
		},
	},
}

// Seed returns the hardcoded split list for a ticker, or nil
func Seed(ticker string) []market.SplitRow {
	rows := seedSplits[ticker]
	out := make([]market.SplitRow, len(rows))
	copy(out, rows)
	return out
}
