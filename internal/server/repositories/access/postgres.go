// Package access provides the SQL-backed access-control ledger.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/dbx"
)

// PostgresRepository implements the ledger over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IsMember reports whether identity may edit documentID.
func (r *PostgresRepository) IsMember(ctx context.Context, documentID int64, identity string) (bool, error) {
	query := `
		SELECT COUNT(1) FROM document_access
		WHERE document_id = $1 AND identity = $2
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, documentID, identity).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// AddMember inserts the membership fact. Re-adding is a no-op thanks to the
// conflict clause, which is what makes grants idempotent.
func (r *PostgresRepository) AddMember(ctx context.Context, documentID int64, identity string, now time.Time) error {
	query := `
		INSERT INTO document_access (document_id, identity, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, identity) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, documentID, identity, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
