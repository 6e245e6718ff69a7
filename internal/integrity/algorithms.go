package integrity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"maps"
	"slices"
	"strings"
)

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// normalizeAlgorithm folds tags like "SHA-256" and "sha_256" to "sha256".
func normalizeAlgorithm(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return strings.NewReplacer("-", "", "_", "").Replace(tag)
}

// NewHash returns a fresh digest for tag, or false when the algorithm is not
// supported.
func NewHash(tag string) (hash.Hash, bool) {
	ctor, ok := algorithms[normalizeAlgorithm(tag)]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// supportedAlgorithms lists the normalized tags NewHash accepts, sorted.
func supportedAlgorithms() []string {
	return slices.Sorted(maps.Keys(algorithms))
}
