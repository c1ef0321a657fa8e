package events

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Repository is the append-only lifecycle event log. Rows are written in the
// same transaction as the state change they describe, so any observer sees an
// editor-add and its decrypt-grant together or not at all.
type Repository interface {
	Append(ctx context.Context, event *models.Event) error
	SelectByDocument(ctx context.Context, documentID int64) ([]*models.Event, error)
}
