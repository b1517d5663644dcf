// README: Tracking ping records and read-side ETA derivation.
package tracking

import (
	"time"

	"sokoni/internal/types"
)

// Ping is one GPS sample from a courier's device. Pings are append-only;
// nothing ever mutates or deletes one.
type Ping struct {
	ID         int64       `json:"id"`
	DispatchID types.ID    `json:"dispatch_id"`
	CourierID  types.ID    `json:"courier_id"`
	Position   types.Point `json:"position"`
	HeadingDeg *float64    `json:"heading_deg,omitempty"`
	SpeedKmh   *float64    `json:"speed_kmh,omitempty"`
	AccuracyM  *float64    `json:"accuracy_m,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Remaining is the presentational time-to-arrival. Never persisted;
// recomputed on every read.
type Remaining struct {
	Duration time.Duration `json:"duration"`
	Overdue  bool          `json:"overdue"`
}

// ETARemaining clamps estimated-minus-now at zero and flags overdue
// deliveries instead of going negative.
func ETARemaining(estimated, now time.Time) Remaining {
	d := estimated.Sub(now)
	if d < 0 {
		return Remaining{Duration: 0, Overdue: true}
	}
	return Remaining{Duration: d}
}
