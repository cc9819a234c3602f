package sync

import (
	"fmt"
	"time"
)

// Batch is one bounded date-range slice of the total lookback window.
// Windows are half-open [Start, End): each batch's Start equals the next
// batch's End, so the plan covers the lookback with no gap and no overlap.
type Batch struct {
	Number int
	Start  time.Time // older bound
	End    time.Time // newer bound (exclusive)
	Label  string
}

// PlanBatches partitions the lookback window into contiguous fixed-size
// batches, newest window first. Batch b covers
// [now - min(b*size, total), now - (b-1)*size).
func PlanBatches(batchSizeDays, totalLookbackDays int, now time.Time) ([]Batch, error) {
	if batchSizeDays <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSizeDays)
	}
	if totalLookbackDays <= 0 {
		return nil, fmt.Errorf("total lookback must be positive, got %d", totalLookbackDays)
	}

	total := (totalLookbackDays + batchSizeDays - 1) / batchSizeDays

	batches := make([]Batch, 0, total)
	for b := 1; b <= total; b++ {
		endDaysAgo := (b - 1) * batchSizeDays
		startDaysAgo := b * batchSizeDays
		if startDaysAgo > totalLookbackDays {
			startDaysAgo = totalLookbackDays
		}

		start := now.AddDate(0, 0, -startDaysAgo)
		end := now.AddDate(0, 0, -endDaysAgo)

		batches = append(batches, Batch{
			Number: b,
			Start:  start,
			End:    end,
			Label:  fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		})
	}

	return batches, nil
}
