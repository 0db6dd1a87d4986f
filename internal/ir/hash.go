package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainRecord   = "linkgraph/record/v1"
	DomainSnapshot = "linkgraph/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordDigest fingerprints a single record by its canonical JSON.
func RecordDigest(rec Object) (string, error) {
	canonical, err := MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// SnapshotDigest fingerprints a whole keyed snapshot (key -> record).
// Two stores with identical content produce identical digests regardless of
// insertion order.
func SnapshotDigest(records map[string]Object) (string, error) {
	obj := make(Object, len(records))
	for k, rec := range records {
		obj[k] = rec
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustRecordDigest is like RecordDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordDigest(rec Object) string {
	d, err := RecordDigest(rec)
	if err != nil {
		panic(err)
	}
	return d
}
