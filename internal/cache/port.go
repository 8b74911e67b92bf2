package cache

import (
	"encoding/json"

	"github.com/rohmanhakim/parkfetch/pkg/failure"
)

// Store is the port the fetch pipeline consults before any remote call.
//
// Keys are request keys (a URL for page fetches, a zipcode for proximity
// searches). Values are raw JSON payloads; callers own the encoding.
// A present key is fresh for the lifetime of the process: there is no
// expiry and no per-key deletion.
type Store interface {
	// Lookup returns the cached payload and true on a hit.
	// It never performs I/O.
	Lookup(key string) (json.RawMessage, bool)

	// Insert adds or overwrites key. Durable implementations persist the
	// whole mapping before returning.
	Insert(key string, value json.RawMessage) failure.ClassifiedError

	// Len reports the number of entries.
	Len() int
}
