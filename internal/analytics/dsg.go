package analytics

// DSG describes the dividend growth streak: the longest run of
// consecutive years with strictly increasing yearly-average dividends.
type DSG struct {
	Streak          int    `json:"streak"`
	StreakStartYear int    `json:"streak_start_year"`
	TotalYears      int    `json:"total_years"`
	LastChange      string `json:"last_change"`
}

// GrowthStreak computes yearly averages and finds the longest run of
// consecutive increase steps. LastChange reports whether the newest
// year beat the one before it.
func GrowthStreak(payments []Payment) DSG {
	years, averages := YearlyAverages(payments)
	out := DSG{TotalYears: len(years), LastChange: "none"}
	if len(years) < 2 {
		return out
	}

	newest := years[len(years)-1]
	prior := years[len(years)-2]
	switch {
	case averages[newest] > averages[prior]:
		out.LastChange = "increase"
	case averages[newest] < averages[prior]:
		out.LastChange = "decrease"
	default:
		out.LastChange = "same"
	}

	best, bestStart := 0, 0
	run, runStart := 0, 0
	for i := 1; i < len(years); i++ {
		if years[i] == years[i-1]+1 && averages[years[i]] > averages[years[i-1]] {
			if run == 0 {
				runStart = years[i]
			}
			run++
			if run > best {
				best, bestStart = run, runStart
			}
		} else {
			run = 0
		}
	}

	out.Streak = best
	out.StreakStartYear = bestStart
	return out
}
