package models

type FailureReason string

const (
	FailureNone                FailureReason = ""
	FailureBudgetExceeded      FailureReason = "budget_exceeded"
	FailureBookingWindowMissed FailureReason = "booking_window_missed"
	FailureDuplicateRequest    FailureReason = "duplicate_request"

	// Reported by an upstream ticketing integration and passed through unchanged.
	FailureSoldOutFast         FailureReason = "sold_out_fast"
	FailurePlatformError       FailureReason = "platform_error"
	FailureQuantityUnavailable FailureReason = "quantity_unavailable"
	FailureNetworkTimeout      FailureReason = "network_timeout"
)

// Upstream reports whether the reason can only originate from an upstream integration.
func (r FailureReason) Upstream() bool {
	switch r {
	case FailureSoldOutFast, FailurePlatformError, FailureQuantityUnavailable, FailureNetworkTimeout:
		return true
	}
	return false
}

func (r FailureReason) Valid() bool {
	switch r {
	case FailureBudgetExceeded, FailureBookingWindowMissed, FailureDuplicateRequest:
		return true
	}
	return r.Upstream()
}

// Title is a short user-facing heading for the reason.
func (r FailureReason) Title() string {
	switch r {
	case FailureBudgetExceeded:
		return "Budget Limit Exceeded"
	case FailureBookingWindowMissed:
		return "Booking Window Closed"
	case FailureDuplicateRequest:
		return "Duplicate Request"
	case FailureSoldOutFast:
		return "Sold Out"
	case FailurePlatformError:
		return "Platform Error"
	case FailureQuantityUnavailable:
		return "Insufficient Quantity"
	case FailureNetworkTimeout:
		return "Network Timeout"
	}
	return ""
}

// Description explains the reason in plain terms for notifications.
func (r FailureReason) Description() string {
	switch r {
	case FailureBudgetExceeded:
		return "The ticket price for your requested quantity exceeded your maximum budget. Increase your budget limit to book these tickets."
	case FailureBookingWindowMissed:
		return "Your request was checked after the booking window following the ticket release had closed."
	case FailureDuplicateRequest:
		return "You already had another request for this event, which was processed instead."
	case FailureSoldOutFast:
		return "Tickets sold out before becoming available for your preferences."
	case FailurePlatformError:
		return "The booking platform returned an error. This may be temporary. Try again later or book manually."
	case FailureQuantityUnavailable:
		return "The requested quantity of tickets was not available for your seat preference."
	case FailureNetworkTimeout:
		return "Unable to check availability due to a connection error. Please try again."
	}
	return ""
}
