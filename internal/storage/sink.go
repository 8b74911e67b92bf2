package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/fileutil"
	"github.com/rohmanhakim/parkfetch/pkg/hashutil"
)

/*
Responsibilities
- Persist rendered reports (text, Markdown or HTML)
- Create missing parent directories

Output Characteristics
- Atomic replacement, a reader never sees a half-written report
- Overwrite-safe reruns
*/

type Sink interface {
	Write(path string, content []byte) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
	hashAlgo     hashutil.HashAlgo
}

func NewLocalSink(
	metadataSink metadata.MetadataSink,
	hashAlgo hashutil.HashAlgo,
) LocalSink {
	return LocalSink{
		metadataSink: metadataSink,
		hashAlgo:     hashAlgo,
	}
}

func (s *LocalSink) Write(path string, content []byte) (WriteResult, failure.ClassifiedError) {
	writeResult, err := write(path, content, s.hashAlgo)
	if err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, err.Path),
			},
		)
		return WriteResult{}, err
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactReport,
		writeResult.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, writeResult.Path()),
			metadata.NewAttr(metadata.AttrContentHash, writeResult.ContentHash()),
		},
	)
	return writeResult, nil
}

func write(
	path string,
	content []byte,
	hashAlgo hashutil.HashAlgo,
) (WriteResult, *StorageError) {
	if strings.TrimSpace(path) == "" {
		return WriteResult{}, &StorageError{
			Message:   "report path is empty",
			Retryable: false,
			Cause:     ErrCauseEmptyPath,
		}
	}

	contentHash, err := hashutil.HashBytes(content, hashAlgo)
	if err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
			Path:      path,
		}
	}

	if writeErr := fileutil.WriteFileAtomic(path, content, 0644); writeErr != nil {
		return WriteResult{}, fromFileError(path, writeErr)
	}

	return NewWriteResult(path, contentHash, len(content)), nil
}

func fromFileError(path string, err failure.ClassifiedError) *StorageError {
	var fileErr *fileutil.FileError
	if !errors.As(err, &fileErr) {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
			Path:      path,
		}
	}
	cause := ErrCauseWriteFailure
	switch fileErr.Cause {
	case fileutil.ErrCauseDiskFull:
		cause = ErrCauseDiskFull
	case fileutil.ErrCausePathError:
		cause = ErrCausePathError
	}
	return &StorageError{
		Message:   fileErr.Message,
		Retryable: fileErr.Retryable,
		Cause:     cause,
		Path:      fileErr.Path,
	}
}
