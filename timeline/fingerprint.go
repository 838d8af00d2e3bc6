package timeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed fingerprints. The version suffix
// enables future algorithm migration without colliding with old hashes.
const (
	DomainSpec  = "persontime/spec/v1"
	DomainTable = "persontime/table/v1"
)

// Fingerprint computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
//
// Producers fingerprint their canonical spec encoding under DomainSpec and
// record it in RunInfo; identical inputs plus identical specs therefore
// yield identical fingerprints, which is what makes a run reproducible and
// verifiable after the fact.
func Fingerprint(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TableFingerprint computes the content fingerprint of a table's canonical
// encoding. Two tables with identical canonical bytes are the same result.
func TableFingerprint(t *Table) (string, error) {
	data, err := MarshalCanonical(t)
	if err != nil {
		return "", err
	}
	return Fingerprint(DomainTable, data), nil
}
