package sync

import "time"

const (
	backoffStepMinutes = 2
	backoffCapMinutes  = 10
)

// RateLimitWait computes the escalating backoff applied after the provider
// rate-limits a report creation. Attempts count from 1, so successive waits
// are 2, 4, 6, 8, 10, 10, ... minutes.
func RateLimitWait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	minutes := backoffStepMinutes * attempt
	if minutes > backoffCapMinutes {
		minutes = backoffCapMinutes
	}
	return time.Duration(minutes) * time.Minute
}
