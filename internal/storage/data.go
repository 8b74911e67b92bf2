package storage

// WriteResult describes one report that reached the disk.
type WriteResult struct {
	path        string
	contentHash string
	size        int
}

func NewWriteResult(
	path string,
	contentHash string,
	size int,
) WriteResult {
	return WriteResult{
		path:        path,
		contentHash: contentHash,
		size:        size,
	}
}

func (w *WriteResult) Path() string {
	return w.path
}

func (w *WriteResult) ContentHash() string {
	return w.contentHash
}

func (w *WriteResult) Size() int {
	return w.size
}
