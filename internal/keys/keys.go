package keys

import "strings"

// Sep separates a bucket name from the caller's key.
const Sep = ":"

// Namespace prefixes key with "<name>:". Keys that already carry the prefix are
// returned unchanged, so Namespace(n, Namespace(n, k)) == Namespace(n, k).
func Namespace(name, key string) string {
	prefix := name + Sep
	if strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}

// NamespaceAll namespaces every key into a new slice; the input is not mutated.
func NamespaceAll(name string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = Namespace(name, k)
	}
	return out
}
