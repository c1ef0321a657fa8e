package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Repository is the record store: it owns the id sequence and the document
// rows. Mutators are reached only through the registry service, after
// authorization has passed.
type Repository interface {
	// Create inserts doc with the next dense id (starting at 1) and returns
	// the assigned id.
	Create(ctx context.Context, doc *models.Document) (int64, error)

	// GetByID returns the document or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.Document, error)

	// Count returns the number of created documents, which equals the
	// highest assigned id.
	Count(ctx context.Context) (int64, error)

	// SetBody overwrites the ciphertext body and refreshes updated_at in a
	// single statement.
	SetBody(ctx context.Context, id int64, body []byte, now time.Time) error
}
