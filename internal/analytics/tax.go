package analytics

// AfterTax applies the active withholding rate in percent to a gross
// dividend amount
func AfterTax(gross, ratePercent float64) float64 {
	return round4(gross * (1 - ratePercent/100))
}
