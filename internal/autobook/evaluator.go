package autobook

import (
	"time"

	"github.com/shopspring/decimal"

	"ms-autobook/internal/models"
)

// DefaultBookingWindow is how long after ticket release an auto-book may still succeed.
const DefaultBookingWindow = 5 * time.Minute

type Policy struct {
	BookingWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{BookingWindow: DefaultBookingWindow}
}

func (p Policy) window() time.Duration {
	if p.BookingWindow <= 0 {
		return DefaultBookingWindow
	}
	return p.BookingWindow
}

type Decision struct {
	Status        models.AutoBookStatus
	FailureReason models.FailureReason
	TotalCost     decimal.Decimal
	Elapsed       time.Duration
}

func (d Decision) Succeeded() bool {
	return d.Status == models.AutoBookSuccess
}

// Evaluate decides an eligible auto-book. The budget rule is checked before
// the booking window; both bounds are inclusive.
func Evaluate(ab models.AutoBook, ev models.Event, now time.Time, policy Policy) Decision {
	d := Decision{
		TotalCost: ev.Price.Mul(quantity(ab)),
		Elapsed:   now.Sub(ev.TicketReleaseTime),
	}

	switch {
	case d.TotalCost.GreaterThan(ab.MaxBudget):
		d.Status = models.AutoBookFailed
		d.FailureReason = models.FailureBudgetExceeded
	case d.Elapsed > policy.window():
		d.Status = models.AutoBookFailed
		d.FailureReason = models.FailureBookingWindowMissed
	default:
		d.Status = models.AutoBookSuccess
	}
	return d
}

func quantity(ab models.AutoBook) decimal.Decimal {
	return decimal.NewFromInt(int64(ab.Quantity))
}
