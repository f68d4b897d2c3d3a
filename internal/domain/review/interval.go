package review

import "time"

const day = 24 * time.Hour

// NextInterval returns the time until the next review. reviewCount is the
// count after the current review has been recorded. A failed review always
// resets to one day.
//
// The success intervals are a fixed product-visible table, not a formula:
// first review 1 day, second 3 days, third 7 days, fourth and beyond 14 days.
func NextInterval(reviewCount int, success bool) time.Duration {
	if !success {
		return day
	}
	switch reviewCount {
	case 1:
		return 1 * day
	case 2:
		return 3 * day
	case 3:
		return 7 * day
	default:
		return 14 * day
	}
}
