package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DomainRecord is the domain prefix for record content hashes. The version
// suffix enables future algorithm migration without ambiguity.
const DomainRecord = "chartsync/record/v1"

// ContentHash computes the content-addressed hash of a remote payload:
// SHA-256 with domain separation over canonical JSON. Two canonical records
// that would send identical payloads hash identically, which is what lets a
// re-run skip unchanged records without a remote call.
func ContentHash(payload map[string]string) string {
	canonical := marshalCanonical(payload)
	h := sha256.New()
	h.Write([]byte(DomainRecord))
	h.Write([]byte{0x00}) // null separator prevents domain/data boundary ambiguity
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalCanonical produces deterministic JSON for a flat string map:
// keys sorted, strings NFC normalized, no HTML escaping.
func marshalCanonical(payload map[string]string) []byte {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalCanonicalString(k))
		buf.WriteByte(':')
		buf.Write(marshalCanonicalString(payload[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func marshalCanonicalString(s string) []byte {
	s = norm.NFC.String(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode appends a newline; trim it.
	if err := enc.Encode(s); err != nil {
		// A Go string never fails JSON encoding.
		panic(err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
