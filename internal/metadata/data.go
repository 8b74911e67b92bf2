package metadata

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry or abort decisions.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown
  - The failure does not map cleanly to any known category.

# CauseNetworkFailure
  - Transport failure or remote unavailability (timeouts, resets, 5xx).

# CausePolicyDisallow
  - The remote refused the request (401/403/429, rejected API key).

# CauseContentInvalid
  - Content was fetched but could not be processed meaningfully
    (wrong content type, missing structural marker, malformed JSON).

# CauseStorageFailure
  - Failure while reading or persisting the cache file.

# CauseInvariantViolation
  - A caller broke a precondition (selection out of range).
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL         AttributeKey = "url"
	AttrKey         AttributeKey = "key"
	AttrField       AttributeKey = "field"
	AttrHTTPStatus  AttributeKey = "http_status"
	AttrWritePath   AttributeKey = "write_path"
	AttrContentHash AttributeKey = "content_hash"
	AttrMessage     AttributeKey = "message"
	AttrEntries     AttributeKey = "entries"
	AttrOperation   AttributeKey = "operation"
)

type ArtifactKind string

const (
	ArtifactCacheFile ArtifactKind = "cache_file"
	ArtifactReport    ArtifactKind = "report"
)

// CacheEvent names the outcome of a cache consultation.
type CacheEvent string

const (
	CacheHit   CacheEvent = "hit"
	CacheMiss  CacheEvent = "miss"
	CacheStore CacheEvent = "store"
	CacheLoad  CacheEvent = "load"
)
