package access

import (
	"context"
	"time"
)

// Repository is the access-control ledger: per-document membership facts.
// It is append-only; there is deliberately no removal operation, because the
// security model never revokes decrypt rights once granted.
type Repository interface {
	// IsMember is a pure membership probe. It does not validate document
	// existence: probing a nonexistent document answers false, never an
	// error, so the check stays side-effect-free and composable.
	IsMember(ctx context.Context, documentID int64, identity string) (bool, error)

	// AddMember records membership. Adding an existing member is a no-op.
	AddMember(ctx context.Context, documentID int64, identity string, now time.Time) error
}
