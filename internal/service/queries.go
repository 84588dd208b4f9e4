package service

import (
	"context"

	"github.com/mzurek/divtrack/internal/analytics"
	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/frequency"
	"github.com/mzurek/divtrack/internal/indicators"
	"github.com/mzurek/divtrack/internal/store"
)

// GetPrices returns the stored normalized series for one granularity
func (s *Service) GetPrices(ctx context.Context, ticker string, granularity string) ([]*store.PricePoint, error) {
	g, err := parseGranularity(granularity)
	if err != nil {
		return nil, err
	}
	inst, err := s.GetInstrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.prices.List(ctx, g, inst.ID)
}

// DividendView is one dividend with the after-tax amount applied when
// a withholding rate is active
type DividendView struct {
	*store.Dividend
	AfterTax *float64 `json:"after_tax,omitempty"`
}

// GetDividends returns stored dividends, newest last. limit 0 returns
// the full history.
func (s *Service) GetDividends(ctx context.Context, ticker string, limit int) ([]DividendView, error) {
	if limit < 0 {
		return nil, errs.InvalidInput("limit must be >= 0, got %d", limit)
	}
	inst, err := s.GetInstrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	dividends, err := s.dividends.List(ctx, inst.ID, limit)
	if err != nil {
		return nil, err
	}

	rate, err := s.taxRates.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]DividendView, 0, len(dividends))
	for _, d := range dividends {
		view := DividendView{Dividend: d}
		if rate != nil {
			after := analytics.AfterTax(d.Normalized, rate.Percent)
			view.AfterTax = &after
		}
		out = append(out, view)
	}
	return out, nil
}

// IndicatorResult is an indicator series with its current price
type IndicatorResult struct {
	Ticker       string      `json:"ticker"`
	Indicator    string      `json:"indicator"`
	Granularity  string      `json:"granularity"`
	CurrentPrice *float64    `json:"current_price,omitempty"`
	Points       interface{} `json:"points"`
}

// GetIndicator computes macd, stoch_long or stoch_short over the
// stored normalized series of the requested granularity
func (s *Service) GetIndicator(ctx context.Context, ticker, indicator, granularity string) (*IndicatorResult, error) {
	g, err := parseGranularity(granularity)
	if err != nil {
		return nil, err
	}
	inst, err := s.GetInstrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	rows, err := s.prices.List(ctx, g, inst.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.KindInsufficientData, "no price history stored for "+inst.Ticker)
	}

	points := make([]indicators.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, indicators.Point{Date: r.Date, Close: r.Normalized})
	}

	result := &IndicatorResult{
		Ticker:       inst.Ticker,
		Indicator:    indicator,
		Granularity:  string(g),
		CurrentPrice: inst.CurrentPrice,
	}
	switch indicator {
	case "macd":
		result.Points = indicators.MACD(points, indicators.DefaultMACDParams)
	case "stoch_long":
		result.Points = indicators.Stochastic(points, indicators.StochasticLong)
	case "stoch_short":
		result.Points = indicators.Stochastic(points, indicators.StochasticShort)
	default:
		return nil, errs.InvalidInput("unknown indicator %q", indicator)
	}
	return result, nil
}

// DSGResult is the dividend growth summary with the income forecast
type DSGResult struct {
	Ticker   string             `json:"ticker"`
	Streak   analytics.DSG      `json:"streak"`
	Forecast analytics.Forecast `json:"forecast"`
}

// GetDSG computes the dividend growth streak and the YoY forecast
func (s *Service) GetDSG(ctx context.Context, ticker string) (*DSGResult, error) {
	inst, err := s.GetInstrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	dividends, err := s.dividends.List(ctx, inst.ID, 0)
	if err != nil {
		return nil, err
	}
	if len(dividends) == 0 {
		return nil, errs.New(errs.KindInsufficientData, "no dividend history stored for "+inst.Ticker)
	}

	payments := toPayments(dividends)
	freq := frequency.Frequency(inst.PayoutFrequency)
	return &DSGResult{
		Ticker:   inst.Ticker,
		Streak:   analytics.GrowthStreak(payments),
		Forecast: analytics.GrowthForecast(payments, freq, s.now().UTC()),
	}, nil
}

// GetBreakEven computes the per-month break-even spans for a target
// yield in percent
func (s *Service) GetBreakEven(ctx context.Context, ticker string, targetPercent float64) ([]analytics.BreakEvenPoint, error) {
	if targetPercent <= 0 || targetPercent > 100 {
		return nil, errs.InvalidInput("target percent must be in (0, 100], got %v", targetPercent)
	}
	inst, err := s.GetInstrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	rows, err := s.prices.List(ctx, store.GranularityMonthly, inst.ID)
	if err != nil {
		return nil, err
	}
	dividends, err := s.dividends.List(ctx, inst.ID, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(dividends) == 0 {
		return nil, errs.New(errs.KindInsufficientData, "price and dividend history required for "+inst.Ticker)
	}

	prices := make([]analytics.PricePoint, 0, len(rows))
	for _, r := range rows {
		prices = append(prices, analytics.PricePoint{Date: r.Date, Close: r.Normalized})
	}
	return analytics.BreakEven(prices, toPayments(dividends), targetPercent), nil
}

func toPayments(dividends []*store.Dividend) []analytics.Payment {
	payments := make([]analytics.Payment, 0, len(dividends))
	for _, d := range dividends {
		payments = append(payments, analytics.Payment{Date: d.PaymentDate, Amount: d.Normalized})
	}
	return payments
}

func parseGranularity(granularity string) (store.Granularity, error) {
	switch granularity {
	case string(store.GranularityMonthly), "":
		return store.GranularityMonthly, nil
	case string(store.GranularityWeekly):
		return store.GranularityWeekly, nil
	case string(store.GranularityDaily):
		return store.GranularityDaily, nil
	default:
		return "", errs.InvalidInput("unknown granularity %q", granularity)
	}
}
