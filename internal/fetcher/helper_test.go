package fetcher_test

import (
	"sync"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
)

type fetchEvent struct {
	url         string
	status      int
	contentHash string
	attempts    int
}

type errorEvent struct {
	cause   metadata.ErrorCause
	details string
	attrs   []metadata.Attribute
}

type metadataSinkMock struct {
	mu      sync.Mutex
	fetches []fetchEvent
	errors  []errorEvent
}

func (m *metadataSinkMock) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, errorEvent{cause: cause, details: details, attrs: attrs})
}

func (m *metadataSinkMock) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	contentHash string,
	attempts int,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, fetchEvent{
		url:         fetchUrl,
		status:      httpStatus,
		contentHash: contentHash,
		attempts:    attempts,
	})
}

func (m *metadataSinkMock) RecordCache(event metadata.CacheEvent, key string, attrs []metadata.Attribute) {
}

func (m *metadataSinkMock) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
}
