package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/domain"
)

// ErrNoSnapshot is returned when an account has no persisted allocation.
var ErrNoSnapshot = errors.New("no allocation snapshot")

// Repository persists allocation snapshots per account.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over db.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Save serializes the tree's declared allocation and upserts it for the
// account. The tree's modified flags are cleared on success.
func (r *Repository) Save(ctx context.Context, accountID string, root *Target) error {
	blob, err := msgpack.Marshal(root.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to serialize allocation snapshot: %w", err)
	}

	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO allocation_snapshots (account_id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		accountID, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save allocation snapshot: %w", err)
	}

	root.ClearModified()
	return nil
}

// Load rebuilds the account's allocation tree from its persisted snapshot.
// Returns ErrNoSnapshot when none was ever saved.
func (r *Repository) Load(ctx context.Context, accountID string, registry *domain.Registry) (*Target, error) {
	var blob []byte
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT snapshot FROM allocation_snapshots WHERE account_id = ?`,
		accountID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation snapshot: %w", err)
	}

	var node Node
	if err := msgpack.Unmarshal(blob, &node); err != nil {
		return nil, fmt.Errorf("failed to decode allocation snapshot: %w", err)
	}
	return RestoreTree(node, registry), nil
}
