// Package documents provides the SQL-backed record store for registry
// documents.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the document under the next dense id. The id is computed
// inside the insert, which is safe because the registry service is the only
// writer and runs each creation in its own transaction. Ids stay dense even
// when a creation rolls back, unlike a sequence.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (int64, error) {
	query := `
		INSERT INTO documents (id, name, encrypted_body, encrypted_key, owner, created_at, updated_at)
		SELECT COALESCE(MAX(id), 0) + 1, $1, $2, $3, $4, $5, $6 FROM documents
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		doc.Name, doc.EncryptedBody, doc.EncryptedKey, doc.Owner, doc.CreatedAt, doc.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	doc.ID = id
	return id, nil
}

// GetByID returns the document row or common.ErrorNotFound. Existence is
// judged by the row being present with its owner set; id 0 never matches.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	query := `
		SELECT id, name, encrypted_body, encrypted_key, owner, created_at, updated_at
		FROM documents
		WHERE id = $1 AND owner <> ''
	`
	doc := &models.Document{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.EncryptedBody, &doc.EncryptedKey, &doc.Owner, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return doc, nil
}

// Count returns the highest assigned id, which equals the total number of
// created documents because ids are dense.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(MAX(id), 0) FROM documents`

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SetBody overwrites encrypted_body and updated_at. Returns
// common.ErrorNotFound when no row matches.
func (r *PostgresRepository) SetBody(ctx context.Context, id int64, body []byte, now time.Time) error {
	query := `
		UPDATE documents SET encrypted_body = $1, updated_at = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, body, now, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
