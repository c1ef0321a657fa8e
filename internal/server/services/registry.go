// Package services contains server-side business logic. This file implements
// RegistryService, the single writer of the document registry: it validates
// callers against the access ledger, mutates the record store, and keeps
// edit-rights and key-decrypt-rights moving in lockstep through the enclave.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/enclave"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/eventbus"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// RegistryService orchestrates document lifecycle operations. Every mutation
// runs in one database transaction: document row, ledger membership, event
// row and the enclave grant commit together or not at all, which is the
// invariant that keeps an editor from existing without decrypt rights.
type RegistryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	enclave     enclave.Enclave
	publisher   eventbus.Publisher
	logger      logging.Logger

	// mu serializes mutations. Id allocation reads MAX(id) inside the
	// inserting statement, which is only correct with one writer at a time;
	// HTTP handlers call in concurrently.
	mu sync.Mutex

	// now is a seam for tests; production uses time.Now.
	now func() time.Time
}

// NewRegistryService constructs a RegistryService.
func NewRegistryService(db *sql.DB, m repomanager.RepositoryManager, enc enclave.Enclave,
	pub eventbus.Publisher, logger logging.Logger) *RegistryService {
	return &RegistryService{
		db:          db,
		repomanager: m,
		enclave:     enc,
		publisher:   pub,
		logger:      logger.With("module", "registry"),
		now:         time.Now,
	}
}

// CreateDocument validates the encrypted-key input against its proof, then
// creates the document with caller as owner and sole initial editor. The
// enclave authorizes both the registry itself (so it can delegate later) and
// the caller to decrypt the key. Returns the new document id.
func (s *RegistryService) CreateDocument(ctx context.Context, caller, name string, keyHandle, proof []byte) (int64, error) {
	if common.IsZeroIdentity(caller) {
		return 0, fmt.Errorf("%w: identity %s", common.ErrorNotAuthorized, caller)
	}

	key, err := s.enclave.ValidateAndImport(ctx, keyHandle, proof)
	if err != nil {
		// InvalidCiphertext/InvalidProof propagate verbatim.
		return 0, err
	}

	now := s.now().UTC()
	doc := &models.Document{
		Name:          name,
		EncryptedBody: []byte{},
		EncryptedKey:  key,
		Owner:         caller,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var event *models.Event
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docRepo := s.repomanager.Documents(tx)
		accessRepo := s.repomanager.Access(tx)
		eventRepo := s.repomanager.Events(tx)

		id, err := docRepo.Create(ctx, doc)
		if err != nil {
			return err
		}

		// The owner becomes a member in the same transaction: no window
		// exists where a document has zero authorized editors.
		if err := accessRepo.AddMember(ctx, id, caller, now); err != nil {
			return err
		}

		event = s.newEvent(models.EventDocumentCreated, id, caller, name, now)
		if err := eventRepo.Append(ctx, event); err != nil {
			return err
		}

		// Enclave grants run before commit; a rejection rolls the whole
		// creation back.
		if err := s.enclave.AuthorizeSelf(ctx, key); err != nil {
			return err
		}
		return s.enclave.AuthorizeIdentity(ctx, key, caller)
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, event)
	s.logger.Info(ctx, "document created", "id", doc.ID, "owner", caller)
	return doc.ID, nil
}

// UpdateDocument overwrites the ciphertext body and refreshes updatedAt.
// Fails with ErrorNotFound for absent documents and ErrorNotAuthorized for
// callers outside the access ledger; failures leave the row untouched.
func (s *RegistryService) UpdateDocument(ctx context.Context, caller string, id int64, newBody []byte) error {
	if newBody == nil {
		newBody = []byte{}
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var event *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docRepo := s.repomanager.Documents(tx)
		accessRepo := s.repomanager.Access(tx)
		eventRepo := s.repomanager.Events(tx)

		if _, err := docRepo.GetByID(ctx, id); err != nil {
			return err
		}

		member, err := accessRepo.IsMember(ctx, id, caller)
		if err != nil {
			return err
		}
		if !member {
			return fmt.Errorf("%w: identity %s", common.ErrorNotAuthorized, caller)
		}

		if err := docRepo.SetBody(ctx, id, newBody, now); err != nil {
			return err
		}

		event = s.newEvent(models.EventDocumentUpdated, id, caller, "", now)
		return eventRepo.Append(ctx, event)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, event)
	return nil
}

// GrantAccess is the capability-delegation gateway: only the owner may grant,
// and a successful grant adds the target to the access ledger and extends
// decrypt rights over the document key in the same transaction. Re-granting
// an existing editor is a no-op, not an error.
func (s *RegistryService) GrantAccess(ctx context.Context, caller string, id int64, target string) error {
	if common.IsZeroIdentity(target) {
		return fmt.Errorf("%w: %s", common.ErrorInvalidTarget, target)
	}

	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var event *models.Event
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docRepo := s.repomanager.Documents(tx)
		accessRepo := s.repomanager.Access(tx)
		eventRepo := s.repomanager.Events(tx)

		doc, err := docRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		// Only owners grant; editors cannot sub-delegate.
		if doc.Owner != caller {
			return fmt.Errorf("%w: identity %s", common.ErrorNotAuthorized, caller)
		}

		if err := accessRepo.AddMember(ctx, id, target, now); err != nil {
			return err
		}

		if err := s.enclave.AuthorizeIdentity(ctx, doc.EncryptedKey, target); err != nil {
			return err
		}

		event = s.newEvent(models.EventAccessGranted, id, target, "", now)
		return eventRepo.Append(ctx, event)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, event)
	s.logger.Info(ctx, "access granted", "id", id, "target", target)
	return nil
}

// GetDocument returns ciphertext and metadata for any observer. It never
// depends on caller identity: plaintext is not stored here, so there is
// nothing to protect beyond what the ciphertext already protects.
func (s *RegistryService) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return s.repomanager.Documents(s.db).GetByID(ctx, id)
}

// IsEditor reports whether identity may edit the document. Absent documents
// yield ErrorNotFound; the ledger probe itself stays existence-agnostic.
func (s *RegistryService) IsEditor(ctx context.Context, id int64, identity string) (bool, error) {
	if _, err := s.repomanager.Documents(s.db).GetByID(ctx, id); err != nil {
		return false, err
	}
	return s.repomanager.Access(s.db).IsMember(ctx, id, identity)
}

// Count returns the total number of created documents.
func (s *RegistryService) Count(ctx context.Context) (int64, error) {
	return s.repomanager.Documents(s.db).Count(ctx)
}

// Events returns the document's lifecycle log in recording order.
func (s *RegistryService) Events(ctx context.Context, id int64) ([]*models.Event, error) {
	if _, err := s.repomanager.Documents(s.db).GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repomanager.Events(s.db).SelectByDocument(ctx, id)
}

func (s *RegistryService) newEvent(eventType string, id int64, identity, name string, now time.Time) *models.Event {
	return &models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		DocumentID: id,
		Identity:   identity,
		Name:       name,
		RecordedAt: now,
	}
}

// publish fans the committed event out to watchers. The durable log is the
// event table; fan-out failures are logged, never surfaced to the caller.
func (s *RegistryService) publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn(ctx, "event publish failed", "type", event.Type, "id", event.DocumentID, "error", err.Error())
	}
}
