package canon

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// DomainArtifact is the domain prefix for artifact fingerprints.
// The version suffix enables future digest migration behind a store bump.
const DomainArtifact = "casket/artifact/v1"

// Fingerprint computes the 32-hex-character content address of (kind, input).
//
// Format: MD5(domain + 0x00 + kind + 0x00 + canonical(input)). The null
// separators prevent boundary ambiguity between kind and input, so
// Fingerprint("ab", "c") never collides with Fingerprint("a", "bc").
//
// The digest is the sole cache key; metadata does not participate. MD5 is
// used for width (128 bits), not collision resistance.
func Fingerprint(kind string, input any) (string, error) {
	data, err := Canonical(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", kind, err)
	}

	h := md5.New()
	h.Write([]byte(DomainArtifact))
	h.Write([]byte{0x00})
	h.Write([]byte(kind))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
