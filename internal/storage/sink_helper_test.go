package storage_test

import (
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
)

type metadataSinkMock struct {
	errorCauses   []metadata.ErrorCause
	artifactKinds []metadata.ArtifactKind
	artifactPaths []string
	artifactAttrs [][]metadata.Attribute
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
}

func (m *metadataSinkMock) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	m.artifactKinds = append(m.artifactKinds, kind)
	m.artifactPaths = append(m.artifactPaths, path)
	m.artifactAttrs = append(m.artifactAttrs, attrs)
}

func attrValue(attrs []metadata.Attribute, key metadata.AttributeKey) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}
