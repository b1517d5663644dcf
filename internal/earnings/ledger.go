// README: Vendor earnings ledger; idempotent credits and reversals keyed by order.
package earnings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni/internal/types"
)

type Ledger struct {
	db            *pgxpool.Pool
	commissionBps int64
}

func NewLedger(db *pgxpool.Pool, commissionBps int64) *Ledger {
	return &Ledger{db: db, commissionBps: commissionBps}
}

// Credit records the vendor payout for one order, net of commission.
// The (order, vendor) idempotency key makes duplicate transition events
// harmless: the second insert is a no-op.
func (l *Ledger) Credit(ctx context.Context, orderID, vendorID types.ID, gross types.Money) error {
	commission := gross.Amount * l.commissionBps / 10000
	net := gross.Amount - commission

	_, err := l.db.Exec(ctx, `
        INSERT INTO vendor_earnings (
            idempotency_key, order_id, vendor_id, gross, commission, net, currency, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
        ON CONFLICT (idempotency_key) DO NOTHING`,
		creditKey(orderID, vendorID), string(orderID), string(vendorID),
		gross.Amount, commission, net, gross.Currency,
	)
	if err != nil {
		return fmt.Errorf("credit earnings: %w", err)
	}
	return nil
}

// HasCredit reports whether any earnings row exists for the order. Used
// as the cancellation guard: once vendors are owed money, cancelling
// needs a manual compensation flow.
func (l *Ledger) HasCredit(ctx context.Context, orderID types.ID) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM vendor_earnings WHERE order_id = $1 AND reversed_at IS NULL)`,
		string(orderID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check earnings: %w", err)
	}
	return exists, nil
}

// Reverse voids all credits for an order after a completed refund.
// Repeating the reversal leaves already-reversed rows untouched.
func (l *Ledger) Reverse(ctx context.Context, orderID types.ID) error {
	_, err := l.db.Exec(ctx, `
        UPDATE vendor_earnings
        SET reversed_at = NOW()
        WHERE order_id = $1 AND reversed_at IS NULL`,
		string(orderID),
	)
	if err != nil {
		return fmt.Errorf("reverse earnings: %w", err)
	}
	return nil
}

func creditKey(orderID, vendorID types.ID) string {
	return string(orderID) + ":" + string(vendorID)
}
