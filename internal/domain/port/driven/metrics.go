package driven

import "time"

// AlertMetrics receives engine observations. Implementations must be safe for
// concurrent use.
type AlertMetrics interface {
	ObserveEvaluation(matchedWatchlists int, duration time.Duration)
	ObserveDelivery(status string, attempts int, duration time.Duration)
	IncInflight()
	DecInflight()
}
