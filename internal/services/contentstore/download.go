package contentstore

import (
	"fmt"
	"io"
	"os"
)

const copyBufferSize = 32 * 1024

// SaveTemp streams the ready body into a new file under dir and returns its
// path. The body is closed. On error no file is left behind.
func (r *Response) SaveTemp(dir, pattern string) (string, int64, error) {
	if r == nil || r.Body == nil {
		return "", 0, fmt.Errorf("save archive: response has no body")
	}
	defer r.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create download directory: %w", err)
	}
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp archive: %w", err)
	}
	path := file.Name()

	written, copyErr := io.CopyBuffer(file, r.Body, make([]byte, copyBufferSize))
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return "", 0, fmt.Errorf("download archive: %w", copyErr)
		}
		return "", 0, fmt.Errorf("close temp archive: %w", closeErr)
	}
	return path, written, nil
}
