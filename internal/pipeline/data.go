package pipeline

import (
	"encoding/json"

	"github.com/rohmanhakim/parkfetch/internal/extractor"
	"github.com/rohmanhakim/parkfetch/internal/record"
)

// ProximityResult is a places search response exactly as the provider
// returned it. Places are rendered on demand.
type ProximityResult struct {
	zipcode string
	raw     json.RawMessage
}

func (r ProximityResult) Zipcode() string {
	return r.zipcode
}

func (r ProximityResult) Raw() json.RawMessage {
	return r.raw
}

func (r ProximityResult) Places() []record.NearbyPlace {
	return extractor.NearbyPlaces(r.raw)
}

// Stats counts cache consultations and remote calls since construction.
type Stats struct {
	Hits    int
	Misses  int
	Fetches int
}
