package testsupport

import (
	"archive/zip"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// ZipEntry is one member written by WriteZip.
type ZipEntry struct {
	Name string
	Data []byte
}

// WriteZip writes entries, in order, to a zip archive at path.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			t.Fatalf("zip write %s: %v", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close %s: %v", path, err)
	}
}

// ZipBytes returns entries packed as an in-memory zip archive.
func ZipBytes(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	WriteZip(t, path, entries...)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MD5Hex returns the lowercase hex MD5 digest of data.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
