package bucketcache

import "github.com/unkn0wn-root/bucketcache/conn"

// NeedsReset reports whether h must be replaced: it is nil, or its state is
// neither Open nor Opening. Opening counts as usable so an in-flight handshake
// is not thrashed by eager re-creation.
func NeedsReset(h conn.Handle) bool {
	if h == nil {
		return true
	}
	switch h.State() {
	case conn.Open, conn.Opening:
		return false
	default:
		return true
	}
}
