package common

import "strings"

// ZeroIdentity is the null principal. It is never a valid grant target and
// never owns a document.
const ZeroIdentity = "0x0000000000000000000000000000000000000000"

// IsZeroIdentity reports whether the given identity is absent or the null
// address. Comparison is case-insensitive on the hex part.
func IsZeroIdentity(identity string) bool {
	if identity == "" {
		return true
	}
	return strings.EqualFold(identity, ZeroIdentity)
}
