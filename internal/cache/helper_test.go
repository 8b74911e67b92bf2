package cache_test

import (
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
)

// metadataSinkMock records what the store reported
type metadataSinkMock struct {
	errorCauses    []metadata.ErrorCause
	errorActions   []string
	cacheEvents    []metadata.CacheEvent
	artifactPaths  []string
	artifactEvents int
}

func (m *metadataSinkMock) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.errorCauses = append(m.errorCauses, cause)
	m.errorActions = append(m.errorActions, action)
}

func (m *metadataSinkMock) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	contentHash string,
	attempts int,
) {
}

func (m *metadataSinkMock) RecordCache(event metadata.CacheEvent, key string, attrs []metadata.Attribute) {
	m.cacheEvents = append(m.cacheEvents, event)
}

func (m *metadataSinkMock) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.artifactEvents++
	m.artifactPaths = append(m.artifactPaths, path)
}
