// Package enclave abstracts the confidential-computation primitive that
// guards document keys. The registry never decrypts key material itself: it
// imports an externally encrypted key once, and afterwards only extends the
// set of identities allowed to decrypt it.
//
// Any backend (a real FHE coprocessor, a TEE, or the software implementation
// in this package) satisfies Enclave. All calls are synchronous and either
// succeed fully or fail without side effects.
package enclave

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCiphertext is returned when the supplied key handle is not
	// a ciphertext this enclave can work with.
	ErrInvalidCiphertext = errors.New("invalid ciphertext handle")

	// ErrInvalidProof is returned when the handle's accompanying proof does
	// not check out.
	ErrInvalidProof = errors.New("invalid ciphertext proof")
)

// Enclave grants and extends decrypt capabilities over opaque key handles.
type Enclave interface {
	// ValidateAndImport checks handle against proof and, on success, returns
	// the canonical sealed key the registry should persist. The returned
	// value is opaque: callers store and pass it around but never open it.
	ValidateAndImport(ctx context.Context, handle, proof []byte) ([]byte, error)

	// AuthorizeSelf grants the registry's own principal administrative
	// decrypt-delegation rights over key. The registry needs this to later
	// extend rights to new editors; it still never sees plaintext.
	AuthorizeSelf(ctx context.Context, key []byte) error

	// AuthorizeIdentity grants identity the right to decrypt key. Granting
	// an already-authorized identity is a no-op. Rights are never revoked.
	AuthorizeIdentity(ctx context.Context, key []byte, identity string) error
}
