package rebalancing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/modules/order"
)

// OperationLog is the append-only record of operation batches handed off
// for signing.
type OperationLog struct {
	db *database.DB
}

// NewOperationLog creates an operation log over db.
func NewOperationLog(db *database.DB) *OperationLog {
	return &OperationLog{db: db}
}

// LoggedOperation is one persisted operation row.
type LoggedOperation struct {
	ID        string    `json:"id"`
	AssetCode string    `json:"assetCode"`
	Anchor    string    `json:"anchor"`
	Amount    float64   `json:"amount"`
	Cost      float64   `json:"cost"`
	PriceN    int64     `json:"priceN"`
	PriceD    int64     `json:"priceD"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record appends one asset's operations to the log in a single transaction.
func (l *OperationLog) Record(ctx context.Context, accountID, assetCode string, ops []order.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	now := time.Now().Unix()
	err := database.WithTransaction(l.db.Conn(), func(tx *sql.Tx) error {
		for _, op := range ops {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO operation_log
					(id, account_id, asset_code, anchor, amount, cost, price_n, price_d, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), accountID, assetCode,
				op.Offer.Balance.AnchorName(), op.Amount, op.Cost,
				op.Offer.PriceR.N, op.Offer.PriceR.D, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record operations for %s: %w", assetCode, err)
	}
	return nil
}

// Recent returns the newest limit rows for the account.
func (l *OperationLog) Recent(ctx context.Context, accountID string, limit int) ([]LoggedOperation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.Conn().QueryContext(ctx, `
		SELECT id, asset_code, anchor, amount, cost, price_n, price_d, created_at
		FROM operation_log
		WHERE account_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation log: %w", err)
	}
	defer rows.Close()

	var out []LoggedOperation
	for rows.Next() {
		var op LoggedOperation
		var created int64
		if err := rows.Scan(&op.ID, &op.AssetCode, &op.Anchor, &op.Amount, &op.Cost, &op.PriceN, &op.PriceD, &created); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		op.CreatedAt = time.Unix(created, 0)
		out = append(out, op)
	}
	return out, rows.Err()
}
