// README: Order store backed by PostgreSQL.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, customer_id, subtotal, tax, discount, shipping, total, currency,
            status, status_version, fulfillment_method, payment_status,
            completion_code, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		string(o.ID), string(o.CustomerID),
		o.Subtotal.Amount, o.Tax.Amount, o.Discount.Amount, o.Shipping.Amount, o.Total.Amount, o.Total.Currency,
		string(o.Status), o.StatusVersion, string(o.FulfillmentMethod), o.PaymentStatus,
		o.CompletionCode, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
            INSERT INTO order_items (
                order_id, product_id, vendor_id, name, unit_price, currency, quantity, return_eligible
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			string(o.ID), string(it.ProductID), string(it.VendorID), it.Name,
			it.UnitPrice.Amount, it.UnitPrice.Currency, it.Quantity, it.ReturnEligible,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, customer_id, subtotal, tax, discount, shipping, total, currency,
               status, status_version, fulfillment_method, payment_status,
               completion_code, actual_delivery_date,
               product_rating, delivery_rating, rating_comments, rated_at,
               created_at, cancelled_at, cancellation_reason
        FROM orders
        WHERE id = $1`, string(id),
	)

	var o Order
	var currency string
	err := row.Scan(
		&o.ID, &o.CustomerID,
		&o.Subtotal.Amount, &o.Tax.Amount, &o.Discount.Amount, &o.Shipping.Amount, &o.Total.Amount, &currency,
		&o.Status, &o.StatusVersion, &o.FulfillmentMethod, &o.PaymentStatus,
		&o.CompletionCode, &o.ActualDeliveryDate,
		&o.ProductRating, &o.DeliveryRating, &o.RatingComments, &o.RatedAt,
		&o.CreatedAt, &o.CancelledAt, &o.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	for _, m := range []*types.Money{&o.Subtotal, &o.Tax, &o.Discount, &o.Shipping, &o.Total} {
		m.Currency = currency
	}

	items, err := s.loadItems(ctx, id, currency)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *PgStore) loadItems(ctx context.Context, orderID types.ID, currency string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
        SELECT product_id, vendor_id, name, unit_price, quantity, return_eligible
        FROM order_items
        WHERE order_id = $1
        ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.VendorID, &it.Name, &it.UnitPrice.Amount, &it.Quantity, &it.ReturnEligible); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice.Currency = currency
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus applies one transition with optimistic concurrency: the
// row must still carry the expected status and version. actual_delivery_date
// is written at most once; a repeated delivered transition leaves it alone.
func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            actual_delivery_date = CASE
                WHEN $1 = 'delivered' AND actual_delivery_date IS NULL THEN NOW()
                ELSE actual_delivery_date END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
            cancellation_reason = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancellation_reason END
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_state_events (
            order_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, idPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

// ClaimSideEffect reserves the (order, target status) idempotency key.
// Only the first caller for a given key gets true; duplicate transition
// events therefore fire their side effects at most once.
func (s *PgStore) ClaimSideEffect(ctx context.Context, id types.ID, target Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        INSERT INTO order_side_effects (order_id, target_status, claimed_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (order_id, target_status) DO NOTHING`,
		string(id), string(target),
	)
	if err != nil {
		return false, fmt.Errorf("claim side effect: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetRating writes both ratings in one conditional update. Zero rows
// means the order was not delivered or was already rated; the caller
// disambiguates.
func (s *PgStore) SetRating(ctx context.Context, id types.ID, product, delivery int, comments string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET product_rating = $1,
            delivery_rating = $2,
            rating_comments = $3,
            rated_at = NOW()
        WHERE id = $4
          AND status = 'delivered'
          AND product_rating IS NULL
          AND delivery_rating IS NULL`,
		product, delivery, comments, string(id),
	)
	if err != nil {
		return false, fmt.Errorf("set rating: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
