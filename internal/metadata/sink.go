package metadata

import "time"

/*
MetadataSink receives structured events from every pipeline stage.

Metadata is write-only: no component may read it back to influence
fetch or cache decisions. Events never carry credentials.
*/
type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		contentHash string,
		attempts int,
	)

	RecordCache(event CacheEvent, key string, attrs []Attribute)

	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// SessionFinalizer records the summary of one CLI invocation.
type SessionFinalizer interface {
	RecordSessionStats(
		hits int,
		misses int,
		fetches int,
		duration time.Duration,
	)
}

// NoopSink implements MetadataSink but does nothing.
// Callers (or tests) decide whether to inject a Recorder or a NoopSink.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	contentHash string,
	attempts int,
) {
}

func (n *NoopSink) RecordCache(event CacheEvent, key string, attrs []Attribute) {}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

func (n *NoopSink) RecordSessionStats(hits int, misses int, fetches int, duration time.Duration) {}
