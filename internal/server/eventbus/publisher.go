// Package eventbus fans lifecycle events out to external watchers. The
// durable log lives in the document_events table; publication here is
// post-commit and best-effort.
package eventbus

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

// Publisher pushes a committed lifecycle event to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

// NopPublisher drops events. Used when no redis address is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event *models.Event) error { return nil }
