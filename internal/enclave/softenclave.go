package enclave

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealingInfo = "docvault/sealing/v1"

// SoftEnclave is a software stand-in for a confidential-computation backend.
// Imported keys are re-sealed under an XChaCha20-Poly1305 key derived from
// the attestation secret, and decrypt rights are tracked per sealed key in
// memory. Grants do not survive a process restart even though the access
// ledger does, so this backend is only suitable for development and tests;
// production deployments plug in a hardware or FHE backend that persists
// delegations behind the same interface.
type SoftEnclave struct {
	secret       []byte
	sealingKey   []byte
	selfIdentity string

	mu      sync.Mutex
	grants  map[string]map[string]struct{}
	entropy io.Reader
}

// NewSoftEnclave builds a SoftEnclave. attestationSecret verifies import
// proofs and derives the sealing key; selfIdentity is the principal the
// registry itself acts as when administering delegations.
func NewSoftEnclave(attestationSecret []byte, selfIdentity string) (*SoftEnclave, error) {
	sealingKey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, attestationSecret, nil, []byte(sealingInfo))
	if _, err := io.ReadFull(kdf, sealingKey); err != nil {
		return nil, err
	}

	return &SoftEnclave{
		secret:       attestationSecret,
		sealingKey:   sealingKey,
		selfIdentity: selfIdentity,
		grants:       make(map[string]map[string]struct{}),
		entropy:      rand.Reader,
	}, nil
}

// ValidateAndImport checks that proof is the HMAC-SHA256 of handle under the
// attestation secret, then seals the handle and returns the sealed key.
func (e *SoftEnclave) ValidateAndImport(ctx context.Context, handle, proof []byte) ([]byte, error) {
	if len(handle) == 0 {
		return nil, ErrInvalidCiphertext
	}

	mac := hmac.New(sha256.New, e.secret)
	mac.Write(handle)
	if !hmac.Equal(mac.Sum(nil), proof) {
		return nil, ErrInvalidProof
	}

	aead, err := chacha20poly1305.NewX(e.sealingKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(e.entropy, nonce); err != nil {
		return nil, err
	}

	sealed := aead.Seal(nonce, nonce, handle, nil)
	return sealed, nil
}

// AuthorizeSelf grants the enclave's configured self principal rights over key.
func (e *SoftEnclave) AuthorizeSelf(ctx context.Context, key []byte) error {
	return e.AuthorizeIdentity(ctx, key, e.selfIdentity)
}

// AuthorizeIdentity records a decrypt grant for identity on key. The key must
// be a sealed key previously produced by ValidateAndImport.
func (e *SoftEnclave) AuthorizeIdentity(ctx context.Context, key []byte, identity string) error {
	if err := e.checkSealed(key); err != nil {
		return err
	}

	digest := keyDigest(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.grants[digest]
	if !ok {
		set = make(map[string]struct{})
		e.grants[digest] = set
	}
	set[identity] = struct{}{}
	return nil
}

// IsAuthorized reports whether identity holds decrypt rights on key.
func (e *SoftEnclave) IsAuthorized(key []byte, identity string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.grants[keyDigest(key)]
	if !ok {
		return false
	}
	_, ok = set[identity]
	return ok
}

// checkSealed verifies key opens under the sealing key without exposing the
// plaintext to callers.
func (e *SoftEnclave) checkSealed(key []byte) error {
	if len(key) < chacha20poly1305.NonceSizeX {
		return ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(e.sealingKey)
	if err != nil {
		return err
	}
	nonce, ciphertext := key[:chacha20poly1305.NonceSizeX], key[chacha20poly1305.NonceSizeX:]
	if _, err := aead.Open(nil, nonce, ciphertext, nil); err != nil {
		return ErrInvalidCiphertext
	}
	return nil
}

func keyDigest(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// MakeImportProof computes the proof expected by ValidateAndImport for a
// handle. Clients hold the same attestation secret in real deployments; here
// it doubles as a test helper.
func MakeImportProof(attestationSecret, handle []byte) []byte {
	mac := hmac.New(sha256.New, attestationSecret)
	mac.Write(handle)
	return mac.Sum(nil)
}
