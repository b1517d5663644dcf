// README: Stock release for cancelled orders.
package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni/internal/types"
)

// Releaser puts reserved inventory back when an order is cancelled.
// The quantities come from the order's immutable item snapshot, so a
// repeated release for the same order is prevented by the claim the
// order module takes before calling here.
type Releaser struct {
	db *pgxpool.Pool
}

func NewReleaser(db *pgxpool.Pool) *Releaser {
	return &Releaser{db: db}
}

func (r *Releaser) Release(ctx context.Context, orderID types.ID) error {
	_, err := r.db.Exec(ctx, `
        UPDATE products p
        SET stock_quantity = p.stock_quantity + oi.quantity
        FROM order_items oi
        WHERE oi.order_id = $1 AND p.id = oi.product_id`,
		string(orderID),
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
