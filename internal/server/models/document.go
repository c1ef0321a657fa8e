// Package models contains the persisted row types of the registry.
package models

import "time"

// Document is one registry record. Name, EncryptedKey and Owner are immutable
// after creation; only EncryptedBody and UpdatedAt change, and only through
// the registry service. Both blobs are opaque ciphertext: the server never
// inspects or transforms them.
type Document struct {
	ID            int64
	Name          string
	EncryptedBody []byte
	EncryptedKey  []byte
	Owner         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccessEntry is one (document, identity) membership fact. Entries are only
// ever added; no revocation exists in this design.
type AccessEntry struct {
	DocumentID int64
	Identity   string
	GrantedAt  time.Time
}
