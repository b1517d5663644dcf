// README: Fee tier store backed by PostgreSQL.
package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadTiers returns the configured fee tiers ordered by upper bound. An
// empty result means the operator has not overridden the config policy.
func (s *Store) LoadTiers(ctx context.Context) ([]Tier, error) {
	rows, err := s.db.Query(ctx, `
        SELECT up_to_km, per_km
        FROM fee_tiers
        ORDER BY CASE WHEN up_to_km <= 0 THEN 1 ELSE 0 END, up_to_km`)
	if err != nil {
		return nil, fmt.Errorf("load fee tiers: %w", err)
	}
	defer rows.Close()

	var tiers []Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.UpToKm, &t.PerKm); err != nil {
			return nil, fmt.Errorf("scan fee tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
