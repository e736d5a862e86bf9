package storage

// WriteResult describes one archived page's on-disk home: the URL-derived
// hash that names its file, the full path it was written to, and the
// content hash of what got written — the same triple storage.Sink reports
// through telemetry and that internal/changedetect compares against on
// the next crawl of the same URL.
type WriteResult struct {
	urlHash     string
	path        string
	contentHash string
}

func NewWriteResult(
	urlHash string,
	path string,
	contentHash string,
) WriteResult {
	return WriteResult{
		urlHash:     urlHash,
		path:        path,
		contentHash: contentHash,
	}
}
func (w *WriteResult) URLHash() string {
	return w.urlHash
}

func (w *WriteResult) Path() string {
	return w.path
}

func (w *WriteResult) ContentHash() string {
	return w.contentHash
}
