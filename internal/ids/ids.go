package ids

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Normalize validates raw against the storage identifier grammar and returns
// the canonical uppercase form. It accepts identifiers that are already
// canonical as well as lowercase client-supplied variants.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	id, err := ulid.ParseStrict(strings.ToUpper(raw))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Valid reports whether raw parses as a storage identifier.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
