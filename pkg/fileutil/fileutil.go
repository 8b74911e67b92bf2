package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rohmanhakim/parkfetch/pkg/failure"
)

// GetFileExtension extracts the lower-cased file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	fullDir := filepath.Join(targetPath...)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      fullDir,
		}
	}
	return nil
}

// WriteFileAtomic replaces path with data so that readers observe either the
// previous content or the new content, never a partial write.
// The data is written to a temp file in the same directory, synced, then
// renamed over the target.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) failure.ClassifiedError {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &FileError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      dir,
		}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return writeError(tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return writeError(tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return writeError(tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return writeError(tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &FileError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseRenameError,
			Path:      path,
		}
	}
	return nil
}

func writeError(path string, err error) *FileError {
	if errors.Is(err, syscall.ENOSPC) {
		return &FileError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseDiskFull,
			Path:      path,
		}
	}
	return &FileError{
		Message:   err.Error(),
		Retryable: false,
		Cause:     ErrCauseWriteError,
		Path:      path,
	}
}
