// Package events provides the SQL-backed lifecycle event log.
package events

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// PostgresRepository implements the event log over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one event row. The log supports inserts only.
func (r *PostgresRepository) Append(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO document_events (id, event_type, document_id, identity, name, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Type, event.DocumentID, event.Identity, event.Name, event.RecordedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// SelectByDocument returns the document's events in recording order.
func (r *PostgresRepository) SelectByDocument(ctx context.Context, documentID int64) ([]*models.Event, error) {
	query := `
		SELECT id, event_type, document_id, identity, name, recorded_at
		FROM document_events
		WHERE document_id = $1
		ORDER BY recorded_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []*models.Event
	for rows.Next() {
		var item models.Event
		if err := rows.Scan(
			&item.ID, &item.Type, &item.DocumentID, &item.Identity, &item.Name, &item.RecordedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
