// README: Delivery fee policy definitions.
package pricing

import (
	"errors"
	"math"
	"sort"
	"time"

	"sokoni/internal/types"
)

var (
	ErrInvalidDistance = errors.New("invalid distance")
	ErrInvalidPolicy   = errors.New("invalid fee policy")
)

// Tier charges PerKm (minor units) for every kilometre travelled up to
// UpToKm. UpToKm == 0 marks the open-ended last tier.
type Tier struct {
	UpToKm float64
	PerKm  int64
}

// Policy is a deterministic, monotonically non-decreasing mapping from
// distance to delivery fee. BaseFare covers the first BaseKm; per-km
// charges apply beyond that, tier by tier; the result never drops below
// MinimumFare.
type Policy struct {
	Currency    string
	BaseFare    int64
	BaseKm      float64
	MinimumFare int64
	Tiers       []Tier
}

// Validate rejects policies that would break the monotonicity contract.
func (p Policy) Validate() error {
	if p.BaseFare < 0 || p.MinimumFare < 0 || p.BaseKm < 0 {
		return ErrInvalidPolicy
	}
	for _, t := range p.Tiers {
		if t.PerKm < 0 {
			return ErrInvalidPolicy
		}
	}
	return nil
}

// Fee computes the delivery fee for a distance in kilometres. It is total
// over all non-negative finite inputs and fails with ErrInvalidDistance
// otherwise. The result is rounded to integer minor units.
func (p Policy) Fee(distanceKm float64) (types.Money, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return types.Money{}, ErrInvalidDistance
	}

	amount := float64(p.BaseFare)
	lower := p.BaseKm
	for _, t := range sortedTiers(p.Tiers) {
		if distanceKm <= lower {
			break
		}
		upper := t.UpToKm
		if upper <= 0 {
			upper = math.Inf(1)
		}
		if upper <= lower {
			continue
		}
		span := math.Min(distanceKm, upper) - lower
		amount += span * float64(t.PerKm)
		lower = upper
	}

	rounded := int64(math.Round(amount))
	if rounded < p.MinimumFare {
		rounded = p.MinimumFare
	}
	return types.Money{Amount: rounded, Currency: p.Currency}, nil
}

// ETA estimates arrival from distance and an average speed. Advisory
// only; floored at five minutes so nearby drops do not promise instant
// delivery.
func (p Policy) ETA(distanceKm float64, from time.Time, avgSpeedKmh float64) time.Time {
	hours := distanceKm / avgSpeedKmh
	d := time.Duration(hours * float64(time.Hour))
	if d < 5*time.Minute {
		d = 5 * time.Minute
	}
	return from.Add(d)
}

func sortedTiers(tiers []Tier) []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].UpToKm, out[j].UpToKm
		if a <= 0 {
			return false
		}
		if b <= 0 {
			return true
		}
		return a < b
	})
	return out
}
