package access

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestIsMember_True(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM document_access\s+WHERE document_id = \$1 AND identity = \$2`).
		WithArgs(int64(1), "0xb2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	ok, err := repo.IsMember(context.Background(), 1, "0xb2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("want member")
	}
}

func TestIsMember_FalseForNonexistentDocument(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// Probing an absent document answers false rather than failing.
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM document_access`).
		WithArgs(int64(999), "0xb2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	ok, err := repo.IsMember(context.Background(), 999, "0xb2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("want non-member")
	}
}

func TestIsMember_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM document_access`).
		WillReturnError(errors.New("db is down"))

	_, err := repo.IsMember(context.Background(), 1, "0xb2")
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestAddMember_Insert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`INSERT INTO document_access .* ON CONFLICT \(document_id, identity\) DO NOTHING`).
		WithArgs(int64(1), "0xb2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), 1, "0xb2", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAddMember_ConflictIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	// Zero rows affected on re-grant: still no error.
	mock.ExpectExec(`INSERT INTO document_access .* DO NOTHING`).
		WithArgs(int64(1), "0xb2", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.AddMember(context.Background(), 1, "0xb2", now); err != nil {
		t.Fatalf("re-grant must be a no-op, got %v", err)
	}
}
