// Package memzero scrubs sensitive byte slices, shortening the lifetime of
// message keys and derived subkeys in memory.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros in a constant-time friendly way. Zeroing an
// empty or nil slice is a no-op.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
