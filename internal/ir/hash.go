package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DomainBlock prefixes block fingerprints. The version suffix allows the
// listing format to change without colliding with old fingerprints.
const DomainBlock = "qopt/block/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies a block by the content of its instruction listing.
// Pass history is excluded, so a block keeps its fingerprint until an
// instruction changes.
func Fingerprint(b *Block) string {
	return hashWithDomain(DomainBlock, []byte(strings.Join(b.Listing(), "\n")))
}
