package record

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// identityKeyLength is the length of the derived fallback key in hex
// characters.
const identityKeyLength = 40

// IdentityTuple is the fixed set of content fields hashed when a record
// declares no source ID. Field order and separator are part of the
// contract: the same tuple must produce the same key across runs and
// process restarts.
type IdentityTuple struct {
	// PrimaryURL is the primary attachment URL, if any.
	PrimaryURL string

	// Headline is the announcement title.
	Headline string

	// Disseminated is the raw dissemination timestamp string.
	Disseminated string

	// EntityCode identifies the issuer.
	EntityCode string
}

// ResolveIdentity derives the stable identity key for a record.
// A non-empty declared source ID wins verbatim; otherwise the key is a
// deterministic SHA-256 over the tuple, truncated hex.
//
// Two distinct events that collide on the fallback tuple will merge.
// That matches upstream behaviour and is accepted.
func ResolveIdentity(sourceID string, tuple IdentityTuple) string {
	if id := strings.TrimSpace(sourceID); id != "" {
		return id
	}

	h := sha256.New()
	h.Write([]byte(tuple.PrimaryURL))
	h.Write([]byte{'|'})
	h.Write([]byte(tuple.Headline))
	h.Write([]byte{'|'})
	h.Write([]byte(tuple.Disseminated))
	h.Write([]byte{'|'})
	h.Write([]byte(tuple.EntityCode))

	return hex.EncodeToString(h.Sum(nil))[:identityKeyLength]
}
