package lifecycle

import (
	"time"

	"beatspace/models"
)

var durationDays = map[string]int{
	"1_month":   30,
	"3_months":  90,
	"6_months":  180,
	"12_months": 365,
}

const defaultDurationDays = 30

// DurationDays maps a contract duration key to days; unknown keys are 30.
func DurationDays(key string) int {
	if days, ok := durationDays[key]; ok {
		return days
	}
	return defaultDurationDays
}

func ValidDuration(key string) bool {
	_, ok := durationDays[key]
	return ok
}

// ComputeWindow derives the confirmed booking window from the tentative one,
// falling back to the submission instant and the contract duration.
func ComputeWindow(offer models.OfferRequest) (time.Time, time.Time, error) {
	start := offer.CreatedAt
	if offer.TentativeStartDate != nil {
		start = *offer.TentativeStartDate
	}
	var end time.Time
	if offer.TentativeEndDate != nil {
		end = *offer.TentativeEndDate
	} else {
		end = start.AddDate(0, 0, DurationDays(offer.ContractDuration))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, violation("booking window ends before it starts")
	}
	return start.UTC(), end.UTC(), nil
}
