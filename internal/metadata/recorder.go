package metadata

import (
	"strconv"
	"time"

	"github.com/apex/log"
)

/*
Recorder turns metadata events into structured log entries.

Ordering guarantees:
  - Events are emitted synchronously in the order they are received.
  - With concurrent detail fetches no global ordering is guaranteed.

Every entry carries the run id so that lines from one invocation can be
grouped after the fact.
*/
type Recorder struct {
	runID  string
	logger log.Interface
}

func NewRecorder(runID string, logger log.Interface) *Recorder {
	return &Recorder{
		runID:  runID,
		logger: logger,
	}
}

func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	fields := r.fields(attrs)
	fields["package"] = packageName
	fields["action"] = action
	fields["cause"] = cause.String()
	fields["observed_at"] = observedAt.UTC().Format(time.RFC3339)
	r.logger.WithFields(fields).Warn(errorString)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	contentHash string,
	attempts int,
) {
	fields := r.fields(nil)
	fields[string(AttrURL)] = fetchUrl
	fields[string(AttrHTTPStatus)] = strconv.Itoa(httpStatus)
	fields["duration_ms"] = strconv.FormatInt(duration.Milliseconds(), 10)
	fields["content_type"] = contentType
	fields[string(AttrContentHash)] = contentHash
	fields["attempts"] = strconv.Itoa(attempts)
	r.logger.WithFields(fields).Debug("fetch")
}

func (r *Recorder) RecordCache(event CacheEvent, key string, attrs []Attribute) {
	fields := r.fields(attrs)
	fields[string(AttrKey)] = key
	r.logger.WithFields(fields).Debug("cache " + string(event))
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	fields := r.fields(attrs)
	fields[string(AttrWritePath)] = path
	r.logger.WithFields(fields).Debug("artifact " + string(kind))
}

func (r *Recorder) RecordSessionStats(
	hits int,
	misses int,
	fetches int,
	duration time.Duration,
) {
	fields := r.fields(nil)
	fields["cache_hits"] = strconv.Itoa(hits)
	fields["cache_misses"] = strconv.Itoa(misses)
	fields["fetches"] = strconv.Itoa(fetches)
	fields["duration_ms"] = strconv.FormatInt(duration.Milliseconds(), 10)
	r.logger.WithFields(fields).Info("session finished")
}

func (r *Recorder) fields(attrs []Attribute) log.Fields {
	fields := log.Fields{"run_id": r.runID}
	for _, attr := range attrs {
		fields[string(attr.Key)] = attr.Value
	}
	return fields
}
