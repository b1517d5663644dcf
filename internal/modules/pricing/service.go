// README: Pricing service; serves the active fee policy and ETA estimates.
package pricing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sokoni/internal/config"
	"sokoni/internal/logger"
	"sokoni/internal/types"
)

type Service struct {
	store       *Store
	avgSpeedKmh float64

	mu     sync.RWMutex
	policy Policy
}

// NewService builds a service around the config fallback policy. Call
// Reload to pick up operator overrides from the fee_tiers table.
func NewService(store *Store, fee config.FeeConfig, dispatch config.DispatchConfig) (*Service, error) {
	p := Policy{
		Currency:    fee.Currency,
		BaseFare:    fee.BaseFare,
		BaseKm:      fee.BaseKm,
		MinimumFare: fee.MinimumFare,
		Tiers:       []Tier{{UpToKm: 0, PerKm: fee.PerKm}},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Service{store: store, avgSpeedKmh: dispatch.AvgSpeedKmh, policy: p}, nil
}

// Reload swaps in tiers from the database when present. A failed or
// empty load keeps the current policy.
func (s *Service) Reload(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	tiers, err := s.store.LoadTiers(ctx)
	if err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := s.policy
	candidate.Tiers = tiers
	if err := candidate.Validate(); err != nil {
		logger.Get().Warn("rejecting fee tier override", zap.Error(err))
		return err
	}
	s.policy = candidate
	return nil
}

func (s *Service) Fee(ctx context.Context, distanceKm float64) (types.Money, error) {
	s.mu.RLock()
	p := s.policy
	s.mu.RUnlock()
	return p.Fee(distanceKm)
}

func (s *Service) ETA(distanceKm float64, from time.Time) time.Time {
	s.mu.RLock()
	p := s.policy
	s.mu.RUnlock()
	return p.ETA(distanceKm, from, s.avgSpeedKmh)
}
