package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// IDGenerator assigns chunk identifiers. part is 0 for unsplit pages.
type IDGenerator func(book string, page, part int, text string) string

// HashID is the hex SHA-256 of the chunk text; identical text yields identical IDs across runs.
func HashID(_ string, _, _ int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BookPageID is "<book>##<page>", with "#<part>" appended for split pages.
func BookPageID(book string, page, part int, _ string) string {
	id := book + "##" + strconv.Itoa(page)
	if part > 0 {
		id += "#" + strconv.Itoa(part)
	}
	return id
}

// UUIDID returns a random v4 UUID.
func UUIDID(string, int, int, string) string {
	return uuid.NewString()
}

// NewIDGenerator maps a configured method name to its generator.
func NewIDGenerator(method string) (IDGenerator, error) {
	switch method {
	case "", "hash":
		return HashID, nil
	case "book_page":
		return BookPageID, nil
	case "uuid":
		return UUIDID, nil
	default:
		return nil, fmt.Errorf("unknown id method: %s", method)
	}
}
