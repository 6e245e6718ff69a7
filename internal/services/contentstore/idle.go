package contentstore

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// idleBody closes the wrapped body when no bytes arrive for timeout. Reads
// that fail because of that report os.ErrDeadlineExceeded.
type idleBody struct {
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newIdleBody(body io.ReadCloser, timeout time.Duration) io.ReadCloser {
	if body == nil || timeout <= 0 {
		return body
	}
	b := &idleBody{body: body, timeout: timeout}
	b.timer = time.AfterFunc(timeout, func() {
		b.expired.Store(true)
		_ = b.body.Close()
	})
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if n > 0 && !b.expired.Load() {
		b.timer.Reset(b.timeout)
	}
	if err != nil && err != io.EOF && b.expired.Load() {
		err = fmt.Errorf("archive stream idle for %s: %w", b.timeout, os.ErrDeadlineExceeded)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	if b.expired.Load() {
		return nil
	}
	return b.body.Close()
}
