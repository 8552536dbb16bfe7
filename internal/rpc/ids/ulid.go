// Package ids mints the message ids stamped on every published response
// envelope. ULIDs sort by publish time, which keeps reply streams inspectable
// on the broker without a separate timestamp header.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a 26-character ULID. The shared monotonic entropy source
// makes it safe to call from concurrent reply paths.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
