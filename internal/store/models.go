package store

import "time"

// Granularity identifies a price series table
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityWeekly  Granularity = "weekly"
	GranularityDaily   Granularity = "daily"
)

// Instrument is a tracked ETF
type Instrument struct {
	ID              int64      `json:"id"`
	Ticker          string     `json:"ticker"`
	Name            string     `json:"name"`
	CurrentPrice    *float64   `json:"current_price,omitempty"`
	CurrentYield    *float64   `json:"current_yield,omitempty"`
	PayoutFrequency string     `json:"payout_frequency"`
	InceptionDate   *time.Time `json:"inception_date,omitempty"`
	LastUpdated     time.Time  `json:"last_updated"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PricePoint is one stored close for any granularity. Raw is the value
// as reported by the provider at fetch time; Normalized is raw divided
// by the cumulative split factor of all splits after Date.
type PricePoint struct {
	ID           int64     `json:"id"`
	InstrumentID int64     `json:"instrument_id"`
	Date         time.Time `json:"date"`
	Raw          float64   `json:"raw_close"`
	Normalized   float64   `json:"normalized_close"`
	SplitFactor  float64   `json:"split_factor"`

	// Weekly rows carry the ISO calendar position
	ISOYear int `json:"iso_year,omitempty"`
	ISOWeek int `json:"iso_week,omitempty"`
}

// Dividend is one stored dividend payment
type Dividend struct {
	ID           int64      `json:"id"`
	InstrumentID int64      `json:"instrument_id"`
	PaymentDate  time.Time  `json:"payment_date"`
	ExDate       *time.Time `json:"ex_date,omitempty"`
	Raw          float64    `json:"raw_amount"`
	Normalized   float64    `json:"normalized_amount"`
	SplitFactor  float64    `json:"split_factor"`
}

// SplitEvent is a discovered corporate split
type SplitEvent struct {
	ID           int64     `json:"id"`
	InstrumentID int64     `json:"instrument_id"`
	Date         time.Time `json:"split_date"`
	Ratio        float64   `json:"ratio"`
	Description  string    `json:"description"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// QuotaRecord is the persisted daily counter for one provider
type QuotaRecord struct {
	Provider   string    `json:"provider"`
	Count      int       `json:"current_count"`
	DailyLimit int       `json:"daily_limit"`
	LastReset  time.Time `json:"last_reset"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobLogEntry is one persisted pipeline log record
type JobLogEntry struct {
	ID               int64             `json:"id"`
	LoggedAt         time.Time         `json:"logged_at"`
	Action           string            `json:"action"`
	JobName          string            `json:"job_name,omitempty"`
	Level            string            `json:"level"`
	Success          bool              `json:"success"`
	ExecutionTimeMS  int64             `json:"execution_time_ms"`
	RecordsProcessed int               `json:"records_processed"`
	Details          string            `json:"details,omitempty"`
	Error            string            `json:"error,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Log levels for JobLogEntry
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// TaxRate is a dividend tax rate record; at most one is active
type TaxRate struct {
	ID        int64     `json:"id"`
	Percent   float64   `json:"rate_percent"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobLogFilter narrows job log queries
type JobLogFilter struct {
	JobName string
	Level   string
	Action  string
	Since   time.Time
	Limit   int
}
