package badger

import (
	"bytes"

	"github.com/poiesic/screener/query"
)

const (
	documentPrefix = "doc"
	postingPrefix  = "pst"
	referentPrefix = "ref"
	statusKey      = "idx:status"

	// separates variable-length key segments; never occurs in folded text
	keySep = 0x00
)

// makeDocumentKey generates a key for an entity document by ID.
// Format: prefix:id
func makeDocumentKey(id string) []byte {
	return append([]byte(documentPrefix+":"), id...)
}

// documentIDFromKey extracts the entity ID from a document key.
func documentIDFromKey(key []byte) string {
	return string(key[len(documentPrefix)+1:])
}

// makePartialPostingKey generates the prefix shared by all postings of a term.
// Format: prefix:field\x00value\x00
func makePartialPostingKey(term query.Term) []byte {
	buf := make([]byte, 0, len(postingPrefix)+len(term.Field)+len(term.Value)+3)
	buf = append(buf, postingPrefix...)
	buf = append(buf, ':')
	buf = append(buf, term.Field...)
	buf = append(buf, keySep)
	buf = append(buf, term.Value...)
	buf = append(buf, keySep)
	return buf
}

// makePostingKey generates a key linking a term to an entity.
// Format: prefix:field\x00value\x00id
func makePostingKey(term query.Term, id string) []byte {
	return append(makePartialPostingKey(term), id...)
}

// postingIDFromKey extracts the entity ID from a posting key found under prefix.
func postingIDFromKey(prefix, key []byte) (string, bool) {
	if !bytes.HasPrefix(key, prefix) {
		return "", false
	}
	return string(key[len(prefix):]), true
}

// makeReferentKey generates a key for a referent redirect.
// Format: prefix:referent
func makeReferentKey(referent string) []byte {
	return append([]byte(referentPrefix+":"), referent...)
}
