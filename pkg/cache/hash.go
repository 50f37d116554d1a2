package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashKey builds a "kind:digest" key. The digest covers the JSON encoding
// of parts: the alignment, start tree and option hashes for a search
// result, or the Newick hash and layout options for a drawing.
func hashKey(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return kind + ":" + Hash(data)
}

// Hash returns the hex SHA-256 of data. Alignments, start trees and search
// options are reduced to it before they enter a key.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
