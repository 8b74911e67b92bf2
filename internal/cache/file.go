package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/fileutil"
)

/*
FileStore is the durable Store: one JSON object in one file.

Persistence contract
  - The whole file is read once, in Load.
  - A missing or corrupt file is an empty cache, never a fatal error.
  - Every Insert rewrites the whole file (write-through) before returning.
  - The rewrite goes through a temp file and a rename, so the file on disk
    is always either the previous or the new mapping.
  - If persisting fails the insert is undone in memory, keeping memory and
    disk identical.
  - Stored values round-trip as equal JSON, not equal bytes: the file is
    written with encoding/json, which compacts each value and escapes
    HTML characters.

All methods are safe for concurrent use; inserts are serialized.
*/
type FileStore struct {
	mu           sync.RWMutex
	path         string
	data         map[string]json.RawMessage
	metadataSink metadata.MetadataSink
}

// Load reads the cache file at path.
func Load(path string, metadataSink metadata.MetadataSink) *FileStore {
	store := &FileStore{
		path:         path,
		data:         make(map[string]json.RawMessage),
		metadataSink: metadataSink,
	}

	data, err := readMapping(path)
	if err != nil {
		var cacheErr *CacheError
		errors.As(err, &cacheErr)
		store.recordError("FileStore.Load", cacheErr)
		return store
	}
	store.data = data

	metadataSink.RecordCache(metadata.CacheLoad, path, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrEntries, strconv.Itoa(len(data))),
	})
	return store
}

func readMapping(path string) (map[string]json.RawMessage, failure.ClassifiedError) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &CacheError{
				Message:   "cache file does not exist yet",
				Retryable: false,
				Cause:     ErrCauseCacheUnavailable,
				Path:      path,
			}
		}
		return nil, &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseCacheUnavailable,
			Path:      path,
		}
	}

	mapping := make(map[string]json.RawMessage)
	if err := json.Unmarshal(content, &mapping); err != nil {
		return nil, &CacheError{
			Message:   fmt.Sprintf("cache file is not a JSON object: %v", err),
			Retryable: false,
			Cause:     ErrCauseCacheUnavailable,
			Path:      path,
		}
	}
	if mapping == nil {
		// literal `null`
		mapping = make(map[string]json.RawMessage)
	}
	return mapping, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Lookup(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok
}

func (s *FileStore) Insert(key string, value json.RawMessage) failure.ClassifiedError {
	if err := validateEntry(key, value); err != nil {
		s.recordError("FileStore.Insert", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.data[key]
	s.data[key] = cloneRaw(value)

	if err := s.persistLocked(); err != nil {
		if existed {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		s.recordError("FileStore.Insert", err)
		return err
	}

	s.metadataSink.RecordCache(metadata.CacheStore, key, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrEntries, strconv.Itoa(len(s.data))),
	})
	return nil
}

// Persist rewrites the cache file from the in-memory mapping. It repairs
// a file that was removed or edited outside the store.
func (s *FileStore) Persist() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(); err != nil {
		s.recordError("FileStore.Persist", err)
		return err
	}
	return nil
}

func (s *FileStore) persistLocked() *CacheError {
	startTime := time.Now()

	content, err := json.Marshal(s.data)
	if err != nil {
		return &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
			Path:      s.path,
		}
	}

	if writeErr := fileutil.WriteFileAtomic(s.path, content, 0644); writeErr != nil {
		return &CacheError{
			Message:   writeErr.Error(),
			Retryable: writeErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCausePersistFailure,
			Path:      s.path,
		}
	}

	s.metadataSink.RecordArtifact(
		metadata.ArtifactCacheFile,
		s.path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrEntries, strconv.Itoa(len(s.data))),
			metadata.NewAttr(metadata.AttrMessage, fmt.Sprintf("%d bytes in %s", len(content), time.Since(startTime))),
		},
	)
	return nil
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Keys returns the cached keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the mapping.
func (s *FileStore) Snapshot() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(s.data))
	for k, v := range s.data {
		out[k] = cloneRaw(v)
	}
	return out
}

func (s *FileStore) recordError(action string, err *CacheError) {
	if err == nil {
		return
	}
	s.metadataSink.RecordError(
		time.Now(),
		"cache",
		action,
		mapCacheErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, err.Path),
		},
	)
}

func validateEntry(key string, value json.RawMessage) *CacheError {
	if key == "" {
		return &CacheError{
			Message:   "key must not be empty",
			Retryable: false,
			Cause:     ErrCauseInvalidKey,
		}
	}
	if !json.Valid(value) {
		return &CacheError{
			Message:   fmt.Sprintf("value for %q is not valid JSON", key),
			Retryable: false,
			Cause:     ErrCauseEncodeFailure,
		}
	}
	return nil
}

func cloneRaw(value json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out
}
