package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/enclave"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const (
	alice         = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob           = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol         = "0xcccccccccccccccccccccccccccccccccccccccc"
	registrySelf  = "0x00000000000000000000000000000000000000ff"
	testAttSecret = "attestation-secret"
)

// The postgres-flavored repositories run unchanged against in-memory sqlite,
// same as the dbx tests; only the schema is created by hand here.
const testSchema = `
CREATE TABLE documents (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	encrypted_body BLOB NOT NULL,
	encrypted_key BLOB NOT NULL,
	owner TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE document_access (
	document_id INTEGER NOT NULL,
	identity TEXT NOT NULL,
	granted_at TIMESTAMP NOT NULL,
	PRIMARY KEY (document_id, identity)
);
CREATE TABLE document_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	document_id INTEGER NOT NULL,
	identity TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL
);
`

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingPublisher struct {
	events []*models.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event *models.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:registry_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

type fixture struct {
	svc       *RegistryService
	enclave   *enclave.SoftEnclave
	publisher *recordingPublisher
	clock     *fakeClock
	db        *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	enc, err := enclave.NewSoftEnclave([]byte(testAttSecret), registrySelf)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	svc := NewRegistryService(db, repomanager.NewPostgresRepositoryManager(), enc, pub, logging.NopLogger{})
	svc.now = clock.Now

	return &fixture{svc: svc, enclave: enc, publisher: pub, clock: clock, db: db}
}

func keyInput(t *testing.T, material string) (handle, proof []byte) {
	t.Helper()
	handle = []byte(material)
	return handle, enclave.MakeImportProof([]byte(testAttSecret), handle)
}

func (f *fixture) create(t *testing.T, caller, name string) int64 {
	t.Helper()
	handle, proof := keyInput(t, "key for "+name)
	id, err := f.svc.CreateDocument(context.Background(), caller, name, handle, proof)
	require.NoError(t, err)
	return id
}

func TestCreateDocument_IdsAreDenseFromOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id := f.create(t, alice, fmt.Sprintf("doc-%d", want))
		require.Equal(t, want, id)
	}

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestCreateDocument_ConcurrentCallersAllSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("doc-%d", i)
			handle := []byte("key for " + name)
			proof := enclave.MakeImportProof([]byte(testAttSecret), handle)
			_, err := f.svc.CreateDocument(ctx, alice, name, handle, proof)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err, "concurrent creations must serialize, not collide on an id")
	}

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(workers), n)
}

func TestCreateDocument_FreshDocumentState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "Ops Manual")

	doc, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ops Manual", doc.Name)
	require.Equal(t, alice, doc.Owner)
	require.Empty(t, doc.EncryptedBody)
	require.True(t, doc.CreatedAt.Equal(doc.UpdatedAt), "createdAt must equal updatedAt on creation")

	editor, err := f.svc.IsEditor(ctx, id, alice)
	require.NoError(t, err)
	require.True(t, editor, "owner is a member from the same atomic step as creation")

	// Decrypt rights follow edit rights: registry and owner are authorized.
	require.True(t, f.enclave.IsAuthorized(doc.EncryptedKey, registrySelf))
	require.True(t, f.enclave.IsAuthorized(doc.EncryptedKey, alice))

	require.Len(t, f.publisher.events, 1)
	require.Equal(t, models.EventDocumentCreated, f.publisher.events[0].Type)
	require.Equal(t, "Ops Manual", f.publisher.events[0].Name)
}

func TestCreateDocument_InvalidProofRejectsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateDocument(ctx, alice, "doc", []byte("handle"), []byte("bogus proof"))
	require.ErrorIs(t, err, enclave.ErrInvalidProof)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.Empty(t, f.publisher.events)
}

func TestGetDocument_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, alice, "only doc")

	for _, id := range []int64{0, 2, 99} {
		_, err := f.svc.GetDocument(ctx, id)
		require.ErrorIs(t, err, common.ErrorNotFound, "id %d", id)
	}
}

func TestIsEditor_NotFoundForAbsentDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.IsEditor(context.Background(), 7, alice)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateDocument_NonMemberChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")
	before, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)

	f.clock.advance(time.Minute)
	err = f.svc.UpdateDocument(ctx, bob, id, []byte("intruder ciphertext"))
	require.ErrorIs(t, err, common.ErrorNotAuthorized)

	after, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, before.EncryptedBody, after.EncryptedBody)
	require.True(t, before.UpdatedAt.Equal(after.UpdatedAt), "failed update must not advance updatedAt")
}

func TestUpdateDocument_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.UpdateDocument(context.Background(), alice, 42, []byte("x"))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateDocument_MemberAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")
	created, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)

	f.clock.advance(time.Minute)
	require.NoError(t, f.svc.UpdateDocument(ctx, alice, id, []byte("ciphertext v2")))

	doc, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("ciphertext v2"), doc.EncryptedBody)
	require.True(t, doc.UpdatedAt.After(created.UpdatedAt))
	require.True(t, doc.CreatedAt.Equal(created.CreatedAt), "createdAt never changes")
}

func TestUpdateDocument_NilBodyStoresEmptyBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")

	require.NoError(t, f.svc.UpdateDocument(ctx, alice, id, nil))

	doc, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Empty(t, doc.EncryptedBody)
}

func TestGrantAccess_OwnerGrantsEditAndDecrypt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")

	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob))

	editor, err := f.svc.IsEditor(ctx, id, bob)
	require.NoError(t, err)
	require.True(t, editor)

	doc, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.True(t, f.enclave.IsAuthorized(doc.EncryptedKey, bob),
		"edit grant and decrypt grant are one logical transaction")

	require.NoError(t, f.svc.UpdateDocument(ctx, bob, id, []byte("bob ciphertext")))
}

func TestGrantAccess_NonOwnerCannotSubDelegate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")
	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob))

	// Bob is an editor, not the owner: still forbidden.
	err := f.svc.GrantAccess(ctx, bob, id, carol)
	require.ErrorIs(t, err, common.ErrorNotAuthorized)

	editor, err := f.svc.IsEditor(ctx, id, carol)
	require.NoError(t, err)
	require.False(t, editor)
}

func TestGrantAccess_ZeroTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")

	err := f.svc.GrantAccess(ctx, alice, id, common.ZeroIdentity)
	require.ErrorIs(t, err, common.ErrorInvalidTarget)

	err = f.svc.GrantAccess(ctx, alice, id, "")
	require.ErrorIs(t, err, common.ErrorInvalidTarget)
}

func TestGrantAccess_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.GrantAccess(context.Background(), alice, 5, bob)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGrantAccess_RegrantIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")
	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob))
	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob), "re-grant must not error")

	editor, err := f.svc.IsEditor(ctx, id, bob)
	require.NoError(t, err)
	require.True(t, editor)

	var n int64
	require.NoError(t, f.db.QueryRow(
		`SELECT COUNT(1) FROM document_access WHERE document_id = $1 AND identity = $2`, id, bob).Scan(&n))
	require.Equal(t, int64(1), n, "membership rows must not duplicate")
}

// The end-to-end scenario: Alice creates "Ops Manual", Bob is rejected,
// Alice shares, Bob edits.
func TestShareScenario_OpsManual(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "Ops Manual")

	err := f.svc.UpdateDocument(ctx, bob, id, []byte("ciphertext"))
	require.ErrorIs(t, err, common.ErrorNotAuthorized)

	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob))
	require.NoError(t, f.svc.UpdateDocument(ctx, bob, id, []byte("ciphertext")))

	doc, err := f.svc.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("ciphertext"), doc.EncryptedBody)
}

func TestEvents_AppendOnlyLifecycleLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")
	f.clock.advance(time.Second)
	require.NoError(t, f.svc.GrantAccess(ctx, alice, id, bob))
	f.clock.advance(time.Second)
	require.NoError(t, f.svc.UpdateDocument(ctx, bob, id, []byte("v2")))

	log, err := f.svc.Events(ctx, id)
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.Equal(t, models.EventDocumentCreated, log[0].Type)
	require.Equal(t, alice, log[0].Identity)
	require.Equal(t, "doc", log[0].Name)
	require.Equal(t, models.EventAccessGranted, log[1].Type)
	require.Equal(t, bob, log[1].Identity)
	require.Equal(t, models.EventDocumentUpdated, log[2].Type)
	require.Equal(t, bob, log[2].Identity)
}

func TestEvents_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Events(context.Background(), 1)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

// failingEnclave accepts imports but refuses delegation, to exercise the
// all-or-nothing rollback.
type failingEnclave struct {
	inner *enclave.SoftEnclave
}

func (e *failingEnclave) ValidateAndImport(ctx context.Context, handle, proof []byte) ([]byte, error) {
	return e.inner.ValidateAndImport(ctx, handle, proof)
}

func (e *failingEnclave) AuthorizeSelf(ctx context.Context, key []byte) error {
	return errors.New("enclave unavailable")
}

func (e *failingEnclave) AuthorizeIdentity(ctx context.Context, key []byte, identity string) error {
	return errors.New("enclave unavailable")
}

func TestCreateDocument_EnclaveFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inner, err := enclave.NewSoftEnclave([]byte(testAttSecret), registrySelf)
	require.NoError(t, err)
	svc := NewRegistryService(f.db, repomanager.NewPostgresRepositoryManager(),
		&failingEnclave{inner: inner}, f.publisher, logging.NopLogger{})

	handle, proof := keyInput(t, "key")
	_, err = svc.CreateDocument(ctx, alice, "doc", handle, proof)
	require.Error(t, err)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "document row must roll back with the failed grant")
	require.Empty(t, f.publisher.events)
}

func TestGrantAccess_EnclaveFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, alice, "doc")

	inner, err := enclave.NewSoftEnclave([]byte(testAttSecret), registrySelf)
	require.NoError(t, err)
	broken := NewRegistryService(f.db, repomanager.NewPostgresRepositoryManager(),
		&failingEnclave{inner: inner}, f.publisher, logging.NopLogger{})
	broken.now = f.clock.Now

	err = broken.GrantAccess(ctx, alice, id, bob)
	require.Error(t, err)

	editor, err := f.svc.IsEditor(ctx, id, bob)
	require.NoError(t, err)
	require.False(t, editor, "editor-add without decrypt-grant must not be observable")
}
