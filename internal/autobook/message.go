package autobook

import (
	"fmt"
	"time"

	"ms-autobook/internal/models"
)

const (
	duplicateMessage    = "Duplicate auto-book for this event; an earlier request was already processed"
	persistErrorMessage = "Could not save the booking result; it will be retried on the next pass"
)

// BuildMessage renders the user-facing text for a decision.
func BuildMessage(ab models.AutoBook, ev models.Event, d Decision, policy Policy) string {
	cost := fmt.Sprintf("%d × %s = %s", ab.Quantity, ev.Price.String(), d.TotalCost.String())

	switch d.FailureReason {
	case models.FailureNone:
		return fmt.Sprintf("Availability confirmed: %s for %d %s ticket(s)", cost, ab.Quantity, ab.SeatClass.Label())
	case models.FailureBudgetExceeded:
		return fmt.Sprintf("Total cost %s exceeds your budget of %s", cost, ab.MaxBudget.String())
	case models.FailureBookingWindowMissed:
		return fmt.Sprintf("Booking window missed: tickets released %s ago (window %s)",
			formatSpan(d.Elapsed), formatSpan(policy.window()))
	case models.FailureDuplicateRequest:
		return duplicateMessage
	}
	if desc := d.FailureReason.Description(); desc != "" {
		return desc
	}
	return string(d.FailureReason)
}

// formatSpan renders d as minutes and seconds, rounding partial seconds up so
// an elapsed time just past the window never reads as equal to it.
func formatSpan(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	m, s := secs/60, secs%60
	switch {
	case m == 0:
		return plural(s, "second")
	case s == 0:
		return plural(m, "minute")
	}
	return plural(m, "minute") + " " + plural(s, "second")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
